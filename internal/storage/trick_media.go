package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MediaRecord struct {
	ID           string    `json:"id"`
	TrickID      string    `json:"trick_id"`
	UserID       string    `json:"user_id"`
	Type         string    `json:"type"`
	URL          string    `json:"url"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	Duration     *int      `json:"duration,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type NewMediaRecord struct {
	TrickID      string  `validate:"required"`
	UserID       string  `validate:"required"`
	Type         string  `validate:"required,oneof=image video"`
	URL          string  `validate:"required,url"`
	ThumbnailURL *string `validate:"omitempty,url"`
	Duration     *int    `validate:"omitempty,min=0"`
}

type TrickMedia struct {
	db Querier
}

const mediaColumns = `id, trick_id, user_id, type, url, thumbnail_url, duration, created_at`

func scanMedia(row interface{ Scan(...any) error }) (MediaRecord, error) {
	var m MediaRecord
	err := row.Scan(&m.ID, &m.TrickID, &m.UserID, &m.Type, &m.URL, &m.ThumbnailURL, &m.Duration, &m.CreatedAt)
	return m, err
}

func (r *TrickMedia) Create(ctx context.Context, in NewMediaRecord) (MediaRecord, error) {
	if err := validate.Struct(in); err != nil {
		return MediaRecord{}, err
	}
	m := MediaRecord{
		ID:           uuid.NewString(),
		TrickID:      in.TrickID,
		UserID:       in.UserID,
		Type:         in.Type,
		URL:          in.URL,
		ThumbnailURL: in.ThumbnailURL,
		Duration:     in.Duration,
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO trick_media (id, trick_id, user_id, type, url, thumbnail_url, duration)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, m.ID, m.TrickID, m.UserID, m.Type, m.URL, m.ThumbnailURL, m.Duration)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return MediaRecord{}, fmt.Errorf("failed to insert trick media: %w", err)
	}
	return m, nil
}

func (r *TrickMedia) FindByID(ctx context.Context, id string) (MediaRecord, error) {
	m, err := scanMedia(r.db.QueryRow(ctx, `SELECT `+mediaColumns+` FROM trick_media WHERE id=$1`, id))
	if err != nil {
		return MediaRecord{}, notFound(err)
	}
	return m, nil
}

func (r *TrickMedia) FindByTrick(ctx context.Context, trickID string) ([]MediaRecord, error) {
	return r.list(ctx, `SELECT `+mediaColumns+` FROM trick_media WHERE trick_id=$1 ORDER BY created_at`, trickID)
}

// FindByUser lists a user's uploads newest first. An empty mediaType matches both kinds.
func (r *TrickMedia) FindByUser(ctx context.Context, userID, mediaType string, page Page) ([]MediaRecord, error) {
	page = page.normalize()
	if mediaType == "" {
		return r.list(ctx, `SELECT `+mediaColumns+` FROM trick_media WHERE user_id=$1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset)
	}
	return r.list(ctx, `SELECT `+mediaColumns+` FROM trick_media WHERE user_id=$1 AND type=$2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, userID, mediaType, page.Limit, page.Offset)
}

func (r *TrickMedia) list(ctx context.Context, q string, args ...any) ([]MediaRecord, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MediaRecord
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *TrickMedia) Delete(ctx context.Context, id, userID string) error {
	return affected(r.db.Exec(ctx, `DELETE FROM trick_media WHERE id=$1 AND user_id=$2`, id, userID))
}
