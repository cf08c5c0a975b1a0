package hrsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/gatewatch/internal/domain/model"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPPusher delivers attendance records to the HR endpoint as JSON. Each
// request carries the record id as an idempotency key so the receiver can
// deduplicate redelivered pushes.
type HTTPPusher struct {
	endpoint string
	token    string
	resolve  func(personID string) string // person id -> external id
	client   *http.Client
}

// NewHTTPPusher creates a pusher for the given endpoint. The token, if set,
// is sent as a bearer credential. resolve maps person ids to the downstream
// system's identifiers; nil passes person ids through unchanged.
func NewHTTPPusher(endpoint, token string, resolve func(personID string) string) *HTTPPusher {
	return &HTTPPusher{
		endpoint: endpoint,
		token:    token,
		resolve:  resolve,
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}
}

// hrPayload mirrors the downstream attendance schema.
type hrPayload struct {
	PersonExternalID string  `json:"person_external_id"`
	Date             string  `json:"date"`
	CheckInTime      *string `json:"check_in_time,omitempty"`
	CheckOutTime     *string `json:"check_out_time,omitempty"`
	Status           string  `json:"status"`
}

// Push sends one record. Client errors (4xx) are permanent; everything else
// is retryable.
func (p *HTTPPusher) Push(ctx context.Context, rec model.AttendanceRecord) error {
	externalID := rec.PersonID
	if p.resolve != nil {
		if id := p.resolve(rec.PersonID); id != "" {
			externalID = id
		}
	}

	payload := hrPayload{
		PersonExternalID: externalID,
		Date:             rec.Day,
		Status:           string(rec.Status),
	}
	if rec.CheckIn != nil {
		t := rec.CheckIn.Time.UTC().Format(time.RFC3339)
		payload.CheckInTime = &t
	}
	if rec.CheckOut != nil {
		t := rec.CheckOut.Time.UTC().Format(time.RFC3339)
		payload.CheckOutTime = &t
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Permanent(fmt.Errorf("marshal record %s: %w", rec.ID, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", rec.ID)
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push record %s: %w", rec.ID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Permanent(fmt.Errorf("push record %s: rejected with status %d", rec.ID, resp.StatusCode))
	default:
		return fmt.Errorf("push record %s: status %d", rec.ID, resp.StatusCode)
	}
}
