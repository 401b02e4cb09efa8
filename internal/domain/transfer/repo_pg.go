package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== Patient repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

const patientCols = `id, name, age, gender, disease_code, severity_code, latitude, longitude,
	vitals, ems_unit_id, status, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.DiseaseCode, &p.SeverityCode,
		&p.Latitude, &p.Longitude, &p.Vitals, &p.EMSUnitID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO patient (id, name, age, gender, disease_code, severity_code,
			latitude, longitude, vitals, ems_unit_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Age, p.Gender, p.DiseaseCode, p.SeverityCode,
		p.Latitude, p.Longitude, p.Vitals, p.EMSUnitID, p.Status).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE patient SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) ListByEMSUnit(ctx context.Context, emsUnitID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient WHERE ems_unit_id = $1`, emsUnitID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patient
		WHERE ems_unit_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, emsUnitID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// =========== Request repository ===========

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository { return &requestRepoPG{pool: pool} }

const requestCols = `id, patient_id, ems_unit_id, hospital_id, hospital_name, hospital_address,
	score, distance_km, eta_minutes, reason, available_beds, trauma_center,
	status, reject_reason, created_at, updated_at`

func scanRequest(row pgx.Row) (*TransferRequest, error) {
	var t TransferRequest
	err := row.Scan(&t.ID, &t.PatientID, &t.EMSUnitID, &t.HospitalID, &t.HospitalName, &t.HospitalAddress,
		&t.Score, &t.DistanceKm, &t.ETAMinutes, &t.Reason, &t.AvailableBeds, &t.TraumaCenter,
		&t.Status, &t.RejectReason, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

const insertRequestSQL = `
	INSERT INTO transfer_request (id, patient_id, ems_unit_id, hospital_id, hospital_name, hospital_address,
		score, distance_km, eta_minutes, reason, available_beds, trauma_center, status)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

func (r *requestRepoPG) CreateBatch(ctx context.Context, patientID uuid.UUID, patientStatus string, reqs []*TransferRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning fan-out tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize against a concurrent accept on the patient row; once a
	// hospital has accepted, no new request may be opened.
	var cur string
	err = tx.QueryRow(ctx, `SELECT status FROM patient WHERE id = $1 FOR UPDATE`, patientID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	accepted, err := countAccepted(ctx, tx, patientID)
	if err != nil {
		return err
	}
	if accepted > 0 {
		return ErrConflict
	}

	for _, t := range reqs {
		t.ID = uuid.New()
		t.Status = RequestPending
		if _, err := tx.Exec(ctx, insertRequestSQL,
			t.ID, t.PatientID, t.EMSUnitID, t.HospitalID, t.HospitalName, t.HospitalAddress,
			t.Score, t.DistanceKm, t.ETAMinutes, t.Reason, t.AvailableBeds, t.TraumaCenter, t.Status); err != nil {
			return fmt.Errorf("inserting transfer request: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE patient SET status=$2, updated_at=NOW() WHERE id = $1`, patientID, patientStatus); err != nil {
		return fmt.Errorf("advancing patient status: %w", err)
	}

	return tx.Commit(ctx)
}

// countAccepted reports how many of the patient's requests hold accepted.
// Callers run it inside a transaction holding the patient row lock.
func countAccepted(ctx context.Context, tx pgx.Tx, patientID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM transfer_request WHERE patient_id = $1 AND status = $2`,
		patientID, RequestAccepted).Scan(&n)
	return n, err
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TransferRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestCols+` FROM transfer_request WHERE id = $1`, id))
}

func (r *requestRepoPG) Accept(ctx context.Context, requestID, hospitalID, hospitalUserID uuid.UUID) (*AcceptResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning accept tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestCols+` FROM transfer_request WHERE id = $1`, requestID))
	if err != nil {
		return nil, err
	}
	if req.HospitalID != hospitalID {
		return nil, ErrNotFound
	}

	// Serialize concurrent accepts for the same patient on the patient row.
	var patientStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM patient WHERE id = $1 FOR UPDATE`, req.PatientID).Scan(&patientStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Re-read under the lock; a concurrent accept may have cancelled us.
	req, err = scanRequest(tx.QueryRow(ctx, `SELECT `+requestCols+` FROM transfer_request WHERE id = $1`, requestID))
	if err != nil {
		return nil, err
	}
	if req.Status != RequestPending {
		return nil, ErrConflict
	}

	// At most one request per patient may ever hold accepted, even if a
	// fresh pending request was opened after an earlier acceptance.
	accepted, err := countAccepted(ctx, tx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if accepted > 0 {
		return nil, ErrConflict
	}

	if err := tx.QueryRow(ctx, `
		UPDATE transfer_request SET status=$2, updated_at=NOW() WHERE id = $1
		RETURNING updated_at`, requestID, RequestAccepted).Scan(&req.UpdatedAt); err != nil {
		return nil, err
	}
	req.Status = RequestAccepted

	rows, err := tx.Query(ctx, `
		UPDATE transfer_request SET status=$3, updated_at=NOW()
		WHERE patient_id = $1 AND status = $2 AND id <> $4
		RETURNING id`, req.PatientID, RequestPending, RequestCancelled, requestID)
	if err != nil {
		return nil, err
	}
	var cancelled []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		cancelled = append(cancelled, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	roomID := uuid.New()
	if _, err := tx.Exec(ctx, `
		INSERT INTO chat_room (id, patient_id, ems_unit_id, hospital_id, hospital_user_id, active)
		VALUES ($1,$2,$3,$4,$5,true)`,
		roomID, req.PatientID, req.EMSUnitID, req.HospitalID, hospitalUserID); err != nil {
		return nil, fmt.Errorf("opening chat room: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	req.ChatRoomID = &roomID
	return &AcceptResult{Request: req, ChatRoomID: roomID, Cancelled: cancelled}, nil
}

func (r *requestRepoPG) MarkRejected(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transfer_request SET status=$2, reject_reason=$3, updated_at=NOW()
		WHERE id = $1 AND status = $4`,
		id, RequestRejected, reason, RequestPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *requestRepoPG) ListPendingByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*TransferRequest, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transfer_request WHERE hospital_id = $1 AND status = $2`,
		hospitalID, RequestPending).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requestCols+` FROM transfer_request
		WHERE hospital_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		hospitalID, RequestPending, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TransferRequest
	for rows.Next() {
		t, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

const acceptedHistoryWhere = ` FROM transfer_request
	WHERE status = 'accepted'
	  AND ($1::uuid IS NULL OR ems_unit_id = $1)
	  AND ($2::uuid IS NULL OR hospital_id = $2)
	  AND created_at >= $3
	  AND ($4 = '' OR EXISTS (
	      SELECT 1 FROM patient p
	      WHERE p.id = transfer_request.patient_id AND p.severity_code = $4))`

func (r *requestRepoPG) ListAccepted(ctx context.Context, emsUnitID, hospitalID *uuid.UUID, f HistoryFilter, limit, offset int) ([]*TransferRequest, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+acceptedHistoryWhere,
		emsUnitID, hospitalID, f.Since, f.SeverityCode).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requestCols+acceptedHistoryWhere+`
		ORDER BY created_at DESC LIMIT $5 OFFSET $6`,
		emsUnitID, hospitalID, f.Since, f.SeverityCode, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TransferRequest
	for rows.Next() {
		t, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *requestRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*TransferRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestCols+` FROM transfer_request
		WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TransferRequest
	for rows.Next() {
		t, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *requestRepoPG) RoomForPatient(ctx context.Context, patientID uuid.UUID) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM chat_room WHERE patient_id = $1 AND active`, patientID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}
