package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TrickRecord is a landed trick stored server side, optionally tied to a park.
type TrickRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SkateparkID *string   `json:"skatepark_id,omitempty"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Difficulty  *string   `json:"difficulty,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewTrickRecord struct {
	UserID      string  `validate:"required"`
	SkateparkID *string `validate:"omitempty"`
	Name        string  `validate:"required,max=100"`
	Description *string `validate:"omitempty"`
	Difficulty  *string `validate:"omitempty,oneof=beginner intermediate advanced pro"`
}

type Tricks struct {
	db Querier
}

func (r *Tricks) Create(ctx context.Context, in NewTrickRecord) (TrickRecord, error) {
	if err := validate.Struct(in); err != nil {
		return TrickRecord{}, err
	}
	t := TrickRecord{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		SkateparkID: in.SkateparkID,
		Name:        in.Name,
		Description: in.Description,
		Difficulty:  in.Difficulty,
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO tricks (id, user_id, skatepark_id, name, description, difficulty)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, t.ID, t.UserID, t.SkateparkID, t.Name, t.Description, t.Difficulty)
	if err := row.Scan(&t.CreatedAt); err != nil {
		return TrickRecord{}, fmt.Errorf("failed to insert trick: %w", err)
	}
	return t, nil
}

func (r *Tricks) FindByID(ctx context.Context, id string) (TrickRecord, error) {
	var t TrickRecord
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, skatepark_id, name, description, difficulty, created_at
		FROM tricks WHERE id=$1
	`, id).Scan(&t.ID, &t.UserID, &t.SkateparkID, &t.Name, &t.Description, &t.Difficulty, &t.CreatedAt)
	if err != nil {
		return TrickRecord{}, notFound(err)
	}
	return t, nil
}

// Delete removes a trick owned by userID along with its media.
func (r *Tricks) Delete(ctx context.Context, id, userID string) error {
	return affected(r.db.Exec(ctx, `DELETE FROM tricks WHERE id=$1 AND user_id=$2`, id, userID))
}
