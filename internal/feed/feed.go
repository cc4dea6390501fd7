// Package feed carries "something changed" signals between writers and live
// list subscribers. Signals carry no payload; subscribers re-read state.
package feed

import (
	"context"
	"sync"
)

// Feed publishes and subscribes to change signals keyed by topic.
type Feed interface {
	Publish(ctx context.Context, topic string) error
	// Subscribe returns a channel that receives a value after each Publish on
	// topic. The channel is closed once ctx is done. Signals may coalesce.
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, error)
}

func DoctorSlotsTopic(doctorID string) string { return "slots:doctor:" + doctorID }

func DoctorAppointmentsTopic(doctorID string) string { return "appointments:doctor:" + doctorID }

func PatientAppointmentsTopic(patientID string) string { return "appointments:patient:" + patientID }

// Hub is an in-process Feed.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

func (h *Hub) Publish(_ context.Context, topic string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
			// a signal is already pending for this subscriber
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, topic string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[chan struct{}]struct{})
	}
	h.subs[topic][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[topic], ch)
		if len(h.subs[topic]) == 0 {
			delete(h.subs, topic)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}
