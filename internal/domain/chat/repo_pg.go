package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const roomCols = `id, patient_id, ems_unit_id, hospital_id, hospital_user_id, active, created_at`

func scanRoom(row pgx.Row) (*ChatRoom, error) {
	var r ChatRoom
	err := row.Scan(&r.ID, &r.PatientID, &r.EMSUnitID, &r.HospitalID, &r.HospitalUserID, &r.Active, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return &r, err
}

func (r *repoPG) GetRoom(ctx context.Context, id uuid.UUID) (*ChatRoom, error) {
	return scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomCols+` FROM chat_room WHERE id = $1`, id))
}

func (r *repoPG) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]*ChatRoom, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roomCols+` FROM chat_room
		WHERE (ems_unit_id = $1 OR hospital_user_id = $1) AND active
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ChatRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, room)
	}
	return items, rows.Err()
}

func (r *repoPG) CreateMessage(ctx context.Context, m *ChatMessage) error {
	m.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO chat_message (id, room_id, sender_id, sender_type, message)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		m.ID, m.RoomID, m.SenderID, m.SenderType, m.Message).
		Scan(&m.CreatedAt)
}

func (r *repoPG) ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*ChatMessage, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_message WHERE room_id = $1`, roomID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, room_id, sender_id, sender_type, message, is_read, created_at
		FROM chat_message WHERE room_id = $1
		ORDER BY created_at LIMIT $2 OFFSET $3`, roomID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderType, &m.Message, &m.Read, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &m)
	}
	return items, total, rows.Err()
}

func (r *repoPG) MarkRead(ctx context.Context, roomID, readerID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE chat_message SET is_read = TRUE
		WHERE room_id = $1 AND sender_id <> $2 AND NOT is_read`, roomID, readerID)
	return err
}
