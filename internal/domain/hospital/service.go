package hospital

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/pulseroute/api/pkg/geo"
)

var ErrNotFound = errors.New("hospital not found")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, h *Hospital) error {
	if h.Name == "" {
		return fmt.Errorf("name is required")
	}
	if h.Latitude < -90 || h.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if h.Longitude < -180 || h.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	if h.AvailableBeds < 0 {
		return fmt.Errorf("available_beds must not be negative")
	}
	return s.repo.Create(ctx, h)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, h *Hospital) error {
	if _, err := s.repo.GetByID(ctx, h.ID); err != nil {
		return err
	}
	return s.repo.Update(ctx, h)
}

// UpdateBeds adjusts a hospital's available bed count.
func (s *Service) UpdateBeds(ctx context.Context, id uuid.UUID, beds int) (*Hospital, error) {
	if beds < 0 {
		return nil, fmt.Errorf("available_beds must not be negative")
	}
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	h.AvailableBeds = beds
	if err := s.repo.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Hospital, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// FindNearby returns active hospitals within radiusKm of the given point,
// closest first.
func (s *Service) FindNearby(ctx context.Context, lat, lon, radiusKm float64) ([]*Nearby, error) {
	hospitals, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var nearby []*Nearby
	for _, h := range hospitals {
		d := geo.DistanceKm(lat, lon, h.Latitude, h.Longitude)
		if d <= radiusKm {
			nearby = append(nearby, &Nearby{Hospital: *h, DistanceKm: d})
		}
	}
	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby, nil
}
