package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/logging"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	BookRatio   float64
	ReadRatio   float64
	EditRatio   float64
	Patients    int
	DoctorLimit int
	HotSlot     bool
}

type slotRef struct {
	DoctorID string
	SlotID   string
}

// DataPool holds the doctors and open slots read from the API at startup.
type DataPool struct {
	Doctors []string
	Slots   []slotRef
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) percentiles() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	sorted := append([]time.Duration(nil), om.latencies...)
	om.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	at := func(pct int) time.Duration {
		idx := len(sorted) * pct / 100
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return sum / time.Duration(len(sorted)), at(50), at(95), sorted[len(sorted)-1]
}

type Metrics struct {
	Book      OperationMetrics
	ListSlots OperationMetrics
	ListAppts OperationMetrics
	Edit      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  *zap.Logger
	metrics Metrics
}

func main() {
	_ = godotenv.Load()

	logger, err := logging.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"), "console")
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid simulator config", zap.Error(err))
	}

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		logger.Fatal("load data pool", zap.Error(err))
	}
	sim.pool = pool
	logger.Info("data pool loaded", zap.Int("doctors", len(pool.Doctors)), zap.Int("open_slots", len(pool.Slots)))

	if cfg.HotSlot {
		if !sim.RunHotSlot() {
			os.Exit(1)
		}
		return
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.4),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.5),
		EditRatio:   getFloat("SIM_EDIT_RATIO", 0.1),
		Patients:    getInt("SIM_PATIENTS", 1000),
		DoctorLimit: getInt("SIM_DOCTOR_LIMIT", 50),
		HotSlot:     getEnv("SIM_HOT_SLOT", "") == "true",
	}

	total := cfg.BookRatio + cfg.ReadRatio + cfg.EditRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.ReadRatio /= total
		cfg.EditRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	return nil
}

type slotView struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Start    string `json:"startTime"`
	End      string `json:"endTime"`
	IsBooked bool   `json:"isBooked"`
	Revision int64  `json:"revision"`
	Status   string `json:"status"`
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	var doctors []struct {
		UID string `json:"uid"`
	}
	if _, err := s.getJSON(ctx, "/doctors", "", "", &doctors); err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	if len(doctors) > s.config.DoctorLimit {
		doctors = doctors[:s.config.DoctorLimit]
	}

	pool := &DataPool{}
	for _, d := range doctors {
		pool.Doctors = append(pool.Doctors, d.UID)

		var slots []slotView
		if _, err := s.getJSON(ctx, "/doctors/"+d.UID+"/slots", "", "", &slots); err != nil {
			return nil, fmt.Errorf("list slots for %s: %w", d.UID, err)
		}
		for _, sl := range slots {
			if sl.Status == "available" {
				pool.Slots = append(pool.Slots, slotRef{DoctorID: d.UID, SlotID: sl.ID})
			}
		}
	}

	if len(pool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors found, run cmd/seed first")
	}
	if len(pool.Slots) == 0 {
		return nil, fmt.Errorf("no open slots found")
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

// RunHotSlot sends every worker at the same open slot at once and checks
// that exactly one booking wins.
func (s *Simulator) RunHotSlot() bool {
	target := s.pool.Slots[0]
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			s.book(ctx, target, "sim-patient-hot-"+strconv.Itoa(i))
		}(i)
	}
	close(start)
	wg.Wait()

	won := atomic.LoadInt64(&s.metrics.Book.Success)
	lost := atomic.LoadInt64(&s.metrics.Book.Conflict)
	failed := atomic.LoadInt64(&s.metrics.Book.Error)
	s.logger.Info("hot slot result",
		zap.String("doctor_id", target.DoctorID),
		zap.String("slot_id", target.SlotID),
		zap.Int64("won", won),
		zap.Int64("conflict", lost),
		zap.Int64("error", failed))

	if won != 1 || failed != 0 {
		s.logger.Error("hot slot check failed, expected exactly one winner and no errors")
		return false
	}
	return true
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
		patient := "sim-patient-" + strconv.Itoa(rng.Intn(s.config.Patients))

		r := rng.Float64()
		switch {
		case r < s.config.BookRatio:
			s.book(ctx, slot, patient)
		case r < s.config.BookRatio+s.config.ReadRatio:
			if rng.Intn(2) == 0 {
				s.listSlots(ctx, slot.DoctorID)
			} else {
				s.listAppointments(ctx, patient)
			}
		default:
			s.edit(ctx, slot)
		}
	}
}

func (s *Simulator) book(ctx context.Context, slot slotRef, patient string) {
	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/doctors/"+slot.DoctorID+"/slots/"+slot.SlotID+"/book",
		patient, "patient", map[string]string{"consultationType": "e-consultation"}, nil)
	if err != nil {
		status = 0
	}
	s.metrics.Book.Record(time.Since(start), status)
}

func (s *Simulator) listSlots(ctx context.Context, doctorID string) {
	start := time.Now()
	status, err := s.getJSON(ctx, "/doctors/"+doctorID+"/slots", "", "", nil)
	if err != nil {
		status = 0
	}
	s.metrics.ListSlots.Record(time.Since(start), status)
}

func (s *Simulator) listAppointments(ctx context.Context, patient string) {
	start := time.Now()
	status, err := s.getJSON(ctx, "/appointments", patient, "patient", nil)
	if err != nil {
		status = 0
	}
	s.metrics.ListAppts.Record(time.Since(start), status)
}

// edit plays the doctor: read the slot, change its end time, write it back
// with the revision that was read.
func (s *Simulator) edit(ctx context.Context, slot slotRef) {
	start := time.Now()

	var slots []slotView
	status, err := s.getJSON(ctx, "/doctors/"+slot.DoctorID+"/slots", "", "", &slots)
	if err != nil || status != http.StatusOK {
		s.metrics.Edit.Record(time.Since(start), status)
		return
	}

	for _, sl := range slots {
		if sl.ID != slot.SlotID {
			continue
		}
		body := map[string]any{
			"date":      sl.Date,
			"startTime": sl.Start,
			"endTime":   sl.End,
			"isBooked":  sl.IsBooked,
			"revision":  sl.Revision,
		}
		status, err = s.send(ctx, http.MethodPut, "/doctors/"+slot.DoctorID+"/slots/"+slot.SlotID,
			slot.DoctorID, "doctor", body, nil)
		if err != nil {
			status = 0
		}
		s.metrics.Edit.Record(time.Since(start), status)
		return
	}

	// slot vanished between load and edit
	s.metrics.Edit.Record(time.Since(start), http.StatusConflict)
}

func (s *Simulator) getJSON(ctx context.Context, path, uid, role string, out any) (int, error) {
	return s.send(ctx, http.MethodGet, path, uid, role, nil, out)
}

func (s *Simulator) send(ctx context.Context, method, path, uid, role string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
		req.Header.Set("X-User-Role", role)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Book", &s.metrics.Book)
	printOperationReport("List slots", &s.metrics.ListSlots)
	printOperationReport("List appointments", &s.metrics.ListAppts)
	printOperationReport("Edit slot", &s.metrics.Edit)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.percentiles()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
