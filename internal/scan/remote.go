package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
)

// ErrIgnored is returned when the server dropped the scan inside the
// device cooldown.
var ErrIgnored = errors.New("scan ignored by server cooldown")

// HTTPSubmitter posts payloads to a check-in server's /v1/scan.
type HTTPSubmitter struct {
	BaseURL  string
	Token    string
	DeviceID string
	Client   *http.Client
}

// NewHTTPSubmitter returns a submitter with a 10 second client timeout.
func NewHTTPSubmitter(baseURL, token, deviceID string) *HTTPSubmitter {
	return &HTTPSubmitter{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Token:    token,
		DeviceID: deviceID,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type remoteScanResp struct {
	Ignored bool              `json:"ignored"`
	Outcome model.OutcomeKind `json:"outcome"`
	Ticket  *model.Ticket     `json:"ticket"`
	Error   string            `json:"error"`
}

// Submit implements Submitter.
func (s *HTTPSubmitter) Submit(ctx context.Context, payload string) (model.CheckInOutcome, error) {
	body, err := json.Marshal(map[string]string{"payload": payload})
	if err != nil {
		return model.CheckInOutcome{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/v1/scan", bytes.NewReader(body))
	if err != nil {
		return model.CheckInOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", s.DeviceID)
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return model.CheckInOutcome{}, fmt.Errorf("submit scan: %w", err)
	}
	defer resp.Body.Close()

	var out remoteScanResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return model.CheckInOutcome{}, fmt.Errorf("submit scan: status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.CheckInOutcome{}, fmt.Errorf("submit scan: status %d: %s", resp.StatusCode, out.Error)
	}
	if out.Ignored {
		return model.CheckInOutcome{}, ErrIgnored
	}
	return model.CheckInOutcome{Kind: out.Outcome, Ticket: out.Ticket}, nil
}
