package hospital

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	hospitals map[uuid.UUID]*Hospital
}

func newMockRepo() *mockRepo {
	return &mockRepo{hospitals: make(map[uuid.UUID]*Hospital)}
}

func (m *mockRepo) Create(_ context.Context, h *Hospital) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	m.hospitals[h.ID] = h
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Hospital, error) {
	h, ok := m.hospitals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

func (m *mockRepo) Update(_ context.Context, h *Hospital) error {
	if _, ok := m.hospitals[h.ID]; !ok {
		return ErrNotFound
	}
	m.hospitals[h.ID] = h
	return nil
}

func (m *mockRepo) ListActive(_ context.Context) ([]*Hospital, error) {
	var out []*Hospital
	for _, h := range m.hospitals {
		if h.Active {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Hospital, int, error) {
	var out []*Hospital
	for _, h := range m.hospitals {
		out = append(out, h)
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func seed(repo *mockRepo, name string, lat, lon float64, active bool) *Hospital {
	h := &Hospital{Name: name, Latitude: lat, Longitude: lon, AvailableBeds: 5, Active: active}
	repo.Create(context.Background(), h)
	return h
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	cases := []struct {
		name string
		h    Hospital
	}{
		{"missing name", Hospital{Latitude: 37, Longitude: 127}},
		{"bad latitude", Hospital{Name: "X", Latitude: 91, Longitude: 127}},
		{"bad longitude", Hospital{Name: "X", Latitude: 37, Longitude: 181}},
		{"negative beds", Hospital{Name: "X", Latitude: 37, Longitude: 127, AvailableBeds: -1}},
	}
	for _, tc := range cases {
		h := tc.h
		if err := svc.Create(ctx, &h); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestFindNearbyFiltersAndSorts(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	// Query point at Seoul City Hall.
	near := seed(repo, "Near", 37.57, 126.98, true)
	mid := seed(repo, "Mid", 37.65, 127.05, true)
	seed(repo, "Far", 35.18, 129.08, true)        // Busan, ~325 km away
	seed(repo, "Inactive", 37.57, 126.98, false)  // next door but inactive

	results, err := svc.FindNearby(context.Background(), 37.5665, 126.978, 50)
	if err != nil {
		t.Fatalf("FindNearby failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hospitals within 50km, got %d", len(results))
	}
	if results[0].ID != near.ID {
		t.Errorf("expected closest hospital first, got %s", results[0].Name)
	}
	if results[1].ID != mid.ID {
		t.Errorf("expected Mid second, got %s", results[1].Name)
	}
	if results[0].DistanceKm >= results[1].DistanceKm {
		t.Error("results not sorted by distance")
	}
}

func TestFindNearbyEmpty(t *testing.T) {
	svc := NewService(newMockRepo())
	results, err := svc.FindNearby(context.Background(), 37.5665, 126.978, 50)
	if err != nil {
		t.Fatalf("FindNearby failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestUpdateBeds(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	h := seed(repo, "General", 37.5, 127.0, true)

	updated, err := svc.UpdateBeds(context.Background(), h.ID, 12)
	if err != nil {
		t.Fatalf("UpdateBeds failed: %v", err)
	}
	if updated.AvailableBeds != 12 {
		t.Errorf("expected 12 beds, got %d", updated.AvailableBeds)
	}

	if _, err := svc.UpdateBeds(context.Background(), h.ID, -1); err == nil {
		t.Error("expected error for negative beds")
	}

	_, err = svc.UpdateBeds(context.Background(), uuid.New(), 3)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
