package transfer

import (
	"time"

	"github.com/google/uuid"

	"github.com/pulseroute/api/internal/platform/matching"
)

// Patient statuses. Status only moves forward through this sequence.
const (
	PatientSearching   = "searching"
	PatientMatched     = "matched"
	PatientRequesting  = "requesting"
	PatientTransferred = "transferred"
)

// Transfer request statuses.
const (
	RequestPending   = "pending"
	RequestAccepted  = "accepted"
	RequestRejected  = "rejected"
	RequestCancelled = "cancelled"
)

// DefaultRejectReason is recorded when a hospital rejects without giving one.
const DefaultRejectReason = "no capacity"

// Patient is a field case awaiting placement at a hospital.
type Patient struct {
	ID           uuid.UUID              `json:"id"`
	Name         string                 `json:"name"`
	Age          int                    `json:"age"`
	Gender       string                 `json:"gender"`
	DiseaseCode  string                 `json:"disease_code"`
	SeverityCode string                 `json:"severity_code"`
	Latitude     float64                `json:"latitude"`
	Longitude    float64                `json:"longitude"`
	Vitals       map[string]interface{} `json:"vitals,omitempty"`
	EMSUnitID    uuid.UUID              `json:"ems_unit_id"`
	Status       string                 `json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`

	// MatchedHospitals carries the full ranked candidate list on the
	// registration and retry responses. It is never persisted.
	MatchedHospitals []matching.Match `json:"matched_hospitals,omitempty"`
}

// TransferRequest asks one hospital to take one patient.
type TransferRequest struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	EMSUnitID  uuid.UUID `json:"ems_unit_id"`
	HospitalID uuid.UUID `json:"hospital_id"`

	HospitalName    string `json:"hospital_name"`
	HospitalAddress string `json:"hospital_address"`

	Score         float64 `json:"score"`
	DistanceKm    float64 `json:"distance_km"`
	ETAMinutes    int     `json:"eta_minutes"`
	Reason        string  `json:"reason"`
	AvailableBeds int     `json:"available_beds"`
	TraumaCenter  bool    `json:"trauma_center"`

	Status       string    `json:"status"`
	RejectReason *string   `json:"reject_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// ChatRoomID is set on the response of a successful acceptance.
	ChatRoomID *uuid.UUID `json:"chat_room_id,omitempty"`
}

// RegisterInput is the payload for patient registration.
type RegisterInput struct {
	Name         string                 `json:"name"`
	Age          int                    `json:"age"`
	Gender       string                 `json:"gender"`
	DiseaseCode  string                 `json:"disease_code"`
	SeverityCode string                 `json:"severity_code"`
	Latitude     float64                `json:"latitude"`
	Longitude    float64                `json:"longitude"`
	Vitals       map[string]interface{} `json:"vitals,omitempty"`
}

// Validate checks the demographic fields.
func (in *RegisterInput) Validate() error {
	if in.Name == "" {
		return validationErr("name is required")
	}
	if in.Age < 0 || in.Age > 150 {
		return validationErr("age must be between 0 and 150")
	}
	if in.Gender != "M" && in.Gender != "F" {
		return validationErr("gender must be M or F")
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		return validationErr("latitude must be between -90 and 90")
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return validationErr("longitude must be between -180 and 180")
	}
	return nil
}

// Timeline is the full placement history of one patient.
type Timeline struct {
	Patient    *Patient           `json:"patient"`
	Requests   []*TransferRequest `json:"requests"`
	ChatRoomID *uuid.UUID         `json:"chat_room_id,omitempty"`
}
