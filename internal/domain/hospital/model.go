package hospital

import (
	"time"

	"github.com/google/uuid"
)

// Hospital is a receiving facility in the directory.
type Hospital struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	AvailableBeds int       `json:"available_beds"`
	TraumaCenter  bool      `json:"trauma_center"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Nearby is a hospital annotated with its distance from a query point.
type Nearby struct {
	Hospital
	DistanceKm float64 `json:"distance_km"`
}
