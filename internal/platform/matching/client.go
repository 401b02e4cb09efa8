// Package matching calls the external ranking service that scores
// candidate hospitals for an incoming patient.
package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable indicates the ranking service could not produce a result,
// whether from a network failure or a non-success response.
var ErrUnavailable = errors.New("ranking service unavailable")

// PatientInfo describes the patient being placed.
type PatientInfo struct {
	Severity   string   `json:"severity"`
	Symptoms   []string `json:"symptoms"`
	AgeGroup   string   `json:"age_group,omitempty"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	NeedTrauma bool     `json:"need_trauma"`
}

// HospitalInfo describes one candidate hospital sent for scoring.
type HospitalInfo struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	AvailableBeds int     `json:"available_beds"`
	TraumaCenter  bool    `json:"trauma_center"`
}

// RankRequest is the payload posted to the ranking service.
type RankRequest struct {
	Patient   PatientInfo    `json:"patient"`
	Hospitals []HospitalInfo `json:"hospitals"`
}

// Match is one scored hospital returned by the ranking service,
// ordered best first.
type Match struct {
	HospitalID    string  `json:"hospital_id"`
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	Score         float64 `json:"score"`
	DistanceKm    float64 `json:"distance_km"`
	ETAMinutes    int     `json:"eta_minutes"`
	Reason        string  `json:"reason"`
	AvailableBeds int     `json:"available_beds"`
	TraumaCenter  bool    `json:"trauma_center"`
}

type rankResponse struct {
	Matches []Match `json:"matches"`
}

// Client is an HTTP client for the ranking service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a ranking client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rank posts the patient and candidate hospitals for scoring and returns
// the ranked matches. Any transport or non-2xx failure is reported as
// ErrUnavailable so callers can fall back to local matching.
func (c *Client) Rank(ctx context.Context, req RankRequest) ([]Match, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding rank request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/match", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building rank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out rankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return out.Matches, nil
}
