package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"zapgate/internal/directory/models"
	dErrors "zapgate/pkg/domain-errors"
)

// Sink forwards admitted listings to an external relay's ingest endpoint
// instead of storing them locally. Use this when the gateway fronts an
// existing web-of-trust relay that owns persistence.
type Sink struct {
	baseURL string
	client  *http.Client
}

// NewSink creates a relay-forwarding admission sink.
func NewSink(baseURL string) *Sink {
	return &Sink{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish POSTs the admitted listing to the relay. Failures are retryable:
// the payment already settled, so the controller surfaces the error without
// rolling back admission state.
func (s *Sink) Publish(ctx context.Context, listing models.AdmittedListing) error {
	body, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("marshal admitted listing: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/listings/ingest", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "relay unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("relay rejected listing: status %d", resp.StatusCode))
	}
	return nil
}
