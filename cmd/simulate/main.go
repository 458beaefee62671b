package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type SimConfig struct {
	AppointmentURL  string
	NotificationURL string
	Duration        time.Duration
	Workers         int
	AppointmentMix  float64 // share of iterations that run the appointment flow
	Patients        int
	Providers       int
}

var (
	closingStatuses   = []string{"CANCELLED", "COMPLETED", "NO_SHOW"}
	channels          = []string{"EMAIL", "SMS", "PUSH"}
	notificationTypes = []string{"appointment.reminder", "appointment.update"}
)

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, want int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == want:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, p99, worst time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	pct := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return avg, pct(50), pct(95), pct(99), latencies[len(latencies)-1]
}

type Metrics struct {
	Create           OperationMetrics
	Get              OperationMetrics
	UpdateStatus     OperationMetrics
	ListByStatus     OperationMetrics
	NotifyAccept     OperationMetrics
	NotifyGet        OperationMetrics
	NotifyListByType OperationMetrics
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d appointment_mix=%.2f appointments=%s notifications=%s",
		cfg.Duration, cfg.Workers, cfg.AppointmentMix, cfg.AppointmentURL, cfg.NotificationURL)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	return SimConfig{
		AppointmentURL:  strings.TrimRight(getEnv("SIM_APPOINTMENT_URL", "http://localhost:3100"), "/"),
		NotificationURL: strings.TrimRight(getEnv("SIM_NOTIFICATION_URL", "http://localhost:3000"), "/"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		AppointmentMix:  getFloat("SIM_APPOINTMENT_MIX", 0.5),
		Patients:        getInt("SIM_PATIENTS", 1000),
		Providers:       getInt("SIM_PROVIDERS", 100),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.AppointmentMix < 0 || cfg.AppointmentMix > 1 {
		return fmt.Errorf("SIM_APPOINTMENT_MIX must be between 0 and 1")
	}
	if cfg.Patients <= 0 || cfg.Providers <= 0 {
		return fmt.Errorf("SIM_PATIENTS and SIM_PROVIDERS must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		if rng.Float64() < s.config.AppointmentMix {
			s.appointmentFlow(ctx, rng)
		} else {
			s.notificationFlow(ctx, rng)
		}
	}
}

// appointmentFlow books an appointment, reads it back, closes it and lists
// appointments in the new status.
func (s *Simulator) appointmentFlow(ctx context.Context, rng *rand.Rand) {
	scheduledFor := time.Now().UTC().Add(10*time.Minute + time.Duration(rng.Intn(3600))*time.Second)
	var created struct {
		ID string `json:"id"`
	}
	status := s.call(ctx, &s.metrics.Create, http.MethodPost, s.config.AppointmentURL+"/appointments", map[string]any{
		"patientId":    fmt.Sprintf("patient-%d", rng.Intn(s.config.Patients)+1),
		"providerId":   fmt.Sprintf("provider-%d", rng.Intn(s.config.Providers)+1),
		"scheduledFor": scheduledFor.Format(time.RFC3339),
		"reason":       "load-test",
	}, http.StatusCreated, &created)
	if status != http.StatusCreated || created.ID == "" {
		return
	}

	s.call(ctx, &s.metrics.Get, http.MethodGet, s.config.AppointmentURL+"/appointments/"+created.ID, nil, http.StatusOK, nil)

	next := closingStatuses[rng.Intn(len(closingStatuses))]
	s.call(ctx, &s.metrics.UpdateStatus, http.MethodPatch, s.config.AppointmentURL+"/appointments/"+created.ID+"/status", map[string]any{
		"status": next,
		"reason": "load-test-status-update",
	}, http.StatusOK, nil)

	s.call(ctx, &s.metrics.ListByStatus, http.MethodGet,
		s.config.AppointmentURL+"/appointments?status="+url.QueryEscape(next), nil, http.StatusOK, nil)
}

// notificationFlow posts a notification directly to the relay, reads it
// back and lists by type.
func (s *Simulator) notificationFlow(ctx context.Context, rng *rand.Rand) {
	notifType := notificationTypes[rng.Intn(len(notificationTypes))]
	var accepted struct {
		ID string `json:"id"`
	}
	status := s.call(ctx, &s.metrics.NotifyAccept, http.MethodPost, s.config.NotificationURL+"/notifications", map[string]any{
		"type":      notifType,
		"channel":   channels[rng.Intn(len(channels))],
		"recipient": fmt.Sprintf("patient-%d", rng.Intn(s.config.Patients)+1),
		"payload": map[string]any{
			"appointmentId": uuid.NewString(),
			"message":       "Automated performance test notification",
		},
		"source": "perf-test-suite",
	}, http.StatusAccepted, &accepted)
	if status != http.StatusAccepted || accepted.ID == "" {
		return
	}

	s.call(ctx, &s.metrics.NotifyGet, http.MethodGet, s.config.NotificationURL+"/notifications/"+accepted.ID, nil, http.StatusOK, nil)
	s.call(ctx, &s.metrics.NotifyListByType, http.MethodGet,
		s.config.NotificationURL+"/notifications?status=SENT&type="+url.QueryEscape(notifType), nil, http.StatusOK, nil)
}

// call performs one request, records it and returns the status code, or 0
// when the request never completed.
func (s *Simulator) call(ctx context.Context, om *OperationMetrics, method, target string, body any, want int, out any) int {
	var rdr io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return 0
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, 0, want)
		}
		return 0
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == want {
		_ = json.NewDecoder(resp.Body).Decode(out)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	om.Record(latency, resp.StatusCode, want)
	return resp.StatusCode
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Create appointment", &s.metrics.Create)
	printOperationReport("Get appointment", &s.metrics.Get)
	printOperationReport("Update status", &s.metrics.UpdateStatus)
	printOperationReport("List by status", &s.metrics.ListByStatus)
	printOperationReport("Accept notification", &s.metrics.NotifyAccept)
	printOperationReport("Get notification", &s.metrics.NotifyGet)
	printOperationReport("List notifications by type", &s.metrics.NotifyListByType)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, p50, p95, p99, worst := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s p99=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond),
		p99.Round(time.Millisecond), worst.Round(time.Millisecond))
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
