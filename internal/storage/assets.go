package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Asset struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Type         string         `json:"type"`
	URL          string         `json:"url"`
	ThumbnailURL *string        `json:"thumbnail_url,omitempty"`
	MimeType     string         `json:"mime_type"`
	Size         int64          `json:"size"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

type NewAsset struct {
	UserID       string         `validate:"required"`
	Type         string         `validate:"required,oneof=image video other"`
	URL          string         `validate:"required,url"`
	ThumbnailURL *string        `validate:"omitempty,url"`
	MimeType     string         `validate:"required"`
	Size         int64          `validate:"min=0"`
	Metadata     map[string]any `validate:"omitempty"`
}

type Assets struct {
	db Querier
}

const assetColumns = `id, user_id, type, url, thumbnail_url, mime_type, size, metadata, created_at`

func scanAsset(row interface{ Scan(...any) error }) (Asset, error) {
	var (
		a    Asset
		meta []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.URL, &a.ThumbnailURL, &a.MimeType, &a.Size, &meta, &a.CreatedAt); err != nil {
		return Asset{}, err
	}
	a.Metadata = map[string]any{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return Asset{}, fmt.Errorf("failed to decode asset metadata: %w", err)
		}
	}
	return a, nil
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}

func (r *Assets) Create(ctx context.Context, in NewAsset) (Asset, error) {
	if err := validate.Struct(in); err != nil {
		return Asset{}, err
	}
	meta, err := encodeMetadata(in.Metadata)
	if err != nil {
		return Asset{}, err
	}
	a := Asset{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		Type:         in.Type,
		URL:          in.URL,
		ThumbnailURL: in.ThumbnailURL,
		MimeType:     in.MimeType,
		Size:         in.Size,
		Metadata:     in.Metadata,
	}
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO assets (id, user_id, type, url, thumbnail_url, mime_type, size, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, a.ID, a.UserID, a.Type, a.URL, a.ThumbnailURL, a.MimeType, a.Size, meta)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Asset{}, fmt.Errorf("failed to insert asset: %w", err)
	}
	return a, nil
}

func (r *Assets) FindByID(ctx context.Context, id string) (Asset, error) {
	a, err := scanAsset(r.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id=$1`, id))
	if err != nil {
		return Asset{}, notFound(err)
	}
	return a, nil
}

// FindByUser lists a user's assets newest first. An empty assetType matches all.
func (r *Assets) FindByUser(ctx context.Context, userID, assetType string) ([]Asset, error) {
	q := `SELECT ` + assetColumns + ` FROM assets WHERE user_id=$1`
	args := []any{userID}
	if assetType != "" {
		q += ` AND type=$2`
		args = append(args, assetType)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update replaces the thumbnail and metadata of an asset owned by userID.
func (r *Assets) Update(ctx context.Context, id, userID string, thumbnailURL *string, metadata map[string]any) error {
	var set setList
	if thumbnailURL != nil {
		set.add("thumbnail_url", *thumbnailURL)
	}
	if metadata != nil {
		meta, err := encodeMetadata(metadata)
		if err != nil {
			return err
		}
		set.add("metadata", meta)
	}
	if set.empty() {
		return ErrNoChanges
	}
	q := `UPDATE assets SET ` + set.clause() + ` WHERE id=` + set.arg(id) + ` AND user_id=` + set.arg(userID)
	return affected(r.db.Exec(ctx, q, set.args...))
}

func (r *Assets) Delete(ctx context.Context, id, userID string) error {
	return affected(r.db.Exec(ctx, `DELETE FROM assets WHERE id=$1 AND user_id=$2`, id, userID))
}
