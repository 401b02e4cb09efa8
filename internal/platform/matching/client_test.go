package matching

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sampleRequest() RankRequest {
	return RankRequest{
		Patient: PatientInfo{
			Severity:  "critical",
			Symptoms:  []string{"chest pain"},
			Latitude:  37.5665,
			Longitude: 126.978,
		},
		Hospitals: []HospitalInfo{
			{ID: "h1", Name: "General", Latitude: 37.57, Longitude: 126.98, AvailableBeds: 4},
		},
	}
}

func TestClientRank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/match" {
			t.Errorf("expected /match path, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var req RankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Hospitals) != 1 {
			t.Errorf("expected 1 hospital, got %d", len(req.Hospitals))
		}

		json.NewEncoder(w).Encode(rankResponse{Matches: []Match{
			{HospitalID: "h1", Name: "General", Score: 0.92, DistanceKm: 1.2, ETAMinutes: 4, Reason: "closest trauma-capable"},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	matches, err := client.Rank(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].HospitalID != "h1" {
		t.Errorf("expected hospital h1, got %s", matches[0].HospitalID)
	}
	if matches[0].Score != 0.92 {
		t.Errorf("expected score 0.92, got %f", matches[0].Score)
	}
}

func TestClientRankServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.Rank(context.Background(), sampleRequest())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientRankConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewClient(server.URL, time.Second)
	_, err := client.Rank(context.Background(), sampleRequest())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientRankMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Rank(context.Background(), sampleRequest())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientRankContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(rankResponse{})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, time.Second)
	if _, err := client.Rank(ctx, sampleRequest()); err == nil {
		t.Fatal("expected error when context expires")
	}
}
