package chat

import (
	"time"

	"github.com/google/uuid"
)

// ChatRoom links the EMS unit and the accepting hospital for one patient.
// It is the sole authorization anchor for who may read or post in it.
type ChatRoom struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	// EMSUnitID is the EMS account that registered the patient.
	EMSUnitID uuid.UUID `json:"ems_unit_id"`
	// HospitalID is the accepting facility; HospitalUserID the desk
	// account that accepted.
	HospitalID     uuid.UUID `json:"hospital_id"`
	HospitalUserID uuid.UUID `json:"hospital_user_id"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Member reports whether the given user may participate in the room.
func (r *ChatRoom) Member(userID uuid.UUID) bool {
	return userID == r.EMSUnitID || userID == r.HospitalUserID
}

// SenderAllowed checks that the claimed sender matches the room's recorded
// participant for that side.
func (r *ChatRoom) SenderAllowed(senderID uuid.UUID, senderType string) bool {
	switch senderType {
	case "ems":
		return senderID == r.EMSUnitID
	case "hospital":
		return senderID == r.HospitalUserID
	default:
		return false
	}
}

// ChatMessage is one persisted chat line. Read flips when the other
// participant fetches the room history.
type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	RoomID     uuid.UUID `json:"room_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderType string    `json:"sender_type"`
	Message    string    `json:"message"`
	Read       bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// InboundFrame is the shape of frames received over a room connection.
type InboundFrame struct {
	SenderID   string `json:"sender_id"`
	SenderType string `json:"sender_type"`
	Message    string `json:"message"`
}
