package transfer

import (
	"context"

	"github.com/google/uuid"
)

// PatientRepository persists patients.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByEMSUnit(ctx context.Context, emsUnitID uuid.UUID, limit, offset int) ([]*Patient, int, error)
}

// AcceptResult is the outcome of an accept cascade.
type AcceptResult struct {
	Request    *TransferRequest
	ChatRoomID uuid.UUID
	// Cancelled holds the sibling request ids moved to cancelled.
	Cancelled []uuid.UUID
}

// RequestRepository persists transfer requests. The two multi-write
// operations run as single transactions: the fan-out only advances patient
// status after every request row is written, and the accept cascade holds
// the patient row lock while it flips the winner and cancels siblings.
type RequestRepository interface {
	// CreateBatch inserts all requests and advances the patient to
	// patientStatus in one transaction.
	CreateBatch(ctx context.Context, patientID uuid.UUID, patientStatus string, reqs []*TransferRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*TransferRequest, error)
	// Accept performs the accept cascade serialized on the patient row:
	// the target request becomes accepted, every sibling still pending
	// becomes cancelled, and a chat room is opened, atomically.
	Accept(ctx context.Context, requestID, hospitalID, hospitalUserID uuid.UUID) (*AcceptResult, error)
	MarkRejected(ctx context.Context, id uuid.UUID, reason string) error
	ListPendingByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*TransferRequest, int, error)
	// ListAccepted returns accepted requests for one side of the transfer,
	// newest first. A nil id leaves that side unfiltered.
	ListAccepted(ctx context.Context, emsUnitID, hospitalID *uuid.UUID, f HistoryFilter, limit, offset int) ([]*TransferRequest, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*TransferRequest, error)
	// RoomForPatient returns the chat room id opened for the patient's
	// accepted request, if any.
	RoomForPatient(ctx context.Context, patientID uuid.UUID) (*uuid.UUID, error)
}
