package notify

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []*messaging.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.sent = append(r.sent, m)
	return "projects/p/messages/1", nil
}

func TestFCMNotifierBuildsMessage(t *testing.T) {
	s := &recordingSender{}
	n := NewFCMNotifier(s)

	err := n.Notify(context.Background(), "tok-1", Message{
		Title: "New appointment",
		Body:  "2099-01-01 at 14",
		Data:  map[string]string{"slotId": "s1"},
	})
	require.NoError(t, err)
	require.Len(t, s.sent, 1)

	got := s.sent[0]
	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, "New appointment", got.Notification.Title)
	assert.Equal(t, "s1", got.Data["slotId"])
	assert.Equal(t, "high", got.Android.Priority)
}

func TestFCMNotifierErrors(t *testing.T) {
	n := NewFCMNotifier(&recordingSender{err: errors.New("quota")})

	assert.ErrorIs(t, n.Notify(context.Background(), "", Message{}), ErrNoToken)
	assert.Error(t, n.Notify(context.Background(), "tok", Message{}))
}
