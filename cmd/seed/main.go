package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

var visitReasons = []string{
	"annual check-up",
	"follow-up visit",
	"blood test results",
	"vaccination",
	"prescription renewal",
	"back pain",
	"skin rash",
	"physiotherapy session",
	"pre-operative assessment",
	"dental cleaning",
}

var closingStatuses = []string{"CANCELLED", "COMPLETED", "NO_SHOW"}

type seeder struct {
	baseURL string
	client  *http.Client
	faker   *gofakeit.Faker
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	baseURL := flag.String("url", "http://localhost:3100", "appointment service base url")
	count := flag.Int("count", 200, "appointments to create")
	patients := flag.Int("patients", 500, "size of the fake patient population")
	providers := flag.Int("providers", 40, "size of the fake provider population")
	closeRatio := flag.Float64("close-ratio", 0.3, "fraction of appointments moved to a closing status")
	seed := flag.Uint64("seed", 0, "faker seed, 0 picks a random one")
	flag.Parse()

	log.Printf("seed starting: url=%s count=%d", *baseURL, *count)

	s := &seeder{
		baseURL: *baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		faker:   gofakeit.New(*seed),
	}

	ctx := context.Background()
	created, closed := 0, 0

	for i := 0; i < *count; i++ {
		id, err := s.createAppointment(ctx, *patients, *providers)
		if err != nil {
			log.Fatalf("create appointment %d: %v", i, err)
		}
		created++

		if s.faker.Float64Range(0, 1) < *closeRatio {
			if err := s.closeAppointment(ctx, id); err != nil {
				log.Fatalf("update appointment %s: %v", id, err)
			}
			closed++
		}

		if created%50 == 0 {
			log.Printf("appointments seeded: %d/%d", created, *count)
		}
	}

	log.Printf("seed complete: created=%d closed=%d", created, closed)
}

func (s *seeder) createAppointment(ctx context.Context, patients, providers int) (string, error) {
	scheduledFor := time.Now().UTC().
		Add(time.Duration(s.faker.Number(1, 30*24)) * time.Hour).
		Truncate(15 * time.Minute)

	body := map[string]any{
		"patientId":    fmt.Sprintf("patient-%d", s.faker.Number(1, patients)),
		"providerId":   fmt.Sprintf("provider-%d", s.faker.Number(1, providers)),
		"scheduledFor": scheduledFor.Format(time.RFC3339),
	}
	if s.faker.Bool() {
		body["reason"] = s.faker.RandomString(visitReasons)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := s.send(ctx, http.MethodPost, "/appointments", body, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (s *seeder) closeAppointment(ctx context.Context, id string) error {
	body := map[string]any{
		"status": s.faker.RandomString(closingStatuses),
		"reason": fmt.Sprintf("seeded by %s", s.faker.Name()),
	}
	return s.send(ctx, http.MethodPatch, "/appointments/"+id+"/status", body, http.StatusOK, nil)
}

func (s *seeder) send(ctx context.Context, method, path string, body any, want int, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var er struct {
			Message string   `json:"message"`
			Details []string `json:"details"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return fmt.Errorf("%s %s: status %d: %s %v", method, path, resp.StatusCode, er.Message, er.Details)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
