package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Image struct {
	ID           string    `json:"id"`
	SkateparkID  string    `json:"skatepark_id"`
	URL          string    `json:"url"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	Caption      *string   `json:"caption,omitempty"`
	Category     *string   `json:"category,omitempty"`
	IsPrimary    bool      `json:"is_primary"`
	CreatedAt    time.Time `json:"created_at"`
}

type NewImage struct {
	SkateparkID  string  `validate:"required"`
	URL          string  `validate:"required,url"`
	ThumbnailURL *string `validate:"omitempty,url"`
	Caption      *string
	Category     *string `validate:"omitempty,oneof=overview feature aerial indoor street-view"`
	IsPrimary    bool
}

type ImagePatch struct {
	Caption   *string
	Category  *string `validate:"omitempty,oneof=overview feature aerial indoor street-view"`
	IsPrimary *bool
}

type SkateparkImages struct {
	db Querier
}

const imageColumns = `id, skatepark_id, url, thumbnail_url, caption, category, is_primary, created_at`

func scanImage(row interface{ Scan(...any) error }) (Image, error) {
	var i Image
	err := row.Scan(&i.ID, &i.SkateparkID, &i.URL, &i.ThumbnailURL, &i.Caption, &i.Category, &i.IsPrimary, &i.CreatedAt)
	return i, err
}

func (r *SkateparkImages) clearPrimary(ctx context.Context, skateparkID string) error {
	_, err := r.db.Exec(ctx, `UPDATE skatepark_images SET is_primary=FALSE WHERE skatepark_id=$1 AND is_primary`, skateparkID)
	return err
}

func (r *SkateparkImages) Create(ctx context.Context, in NewImage) (Image, error) {
	if err := validate.Struct(in); err != nil {
		return Image{}, err
	}
	if in.IsPrimary {
		if err := r.clearPrimary(ctx, in.SkateparkID); err != nil {
			return Image{}, fmt.Errorf("failed to clear primary image: %w", err)
		}
	}
	img := Image{
		ID:           uuid.NewString(),
		SkateparkID:  in.SkateparkID,
		URL:          in.URL,
		ThumbnailURL: in.ThumbnailURL,
		Caption:      in.Caption,
		Category:     in.Category,
		IsPrimary:    in.IsPrimary,
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO skatepark_images (id, skatepark_id, url, thumbnail_url, caption, category, is_primary)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, img.ID, img.SkateparkID, img.URL, img.ThumbnailURL, img.Caption, img.Category, img.IsPrimary)
	if err := row.Scan(&img.CreatedAt); err != nil {
		return Image{}, fmt.Errorf("failed to insert image: %w", err)
	}
	return img, nil
}

func (r *SkateparkImages) FindByID(ctx context.Context, id string) (Image, error) {
	img, err := scanImage(r.db.QueryRow(ctx, `SELECT `+imageColumns+` FROM skatepark_images WHERE id=$1`, id))
	if err != nil {
		return Image{}, notFound(err)
	}
	return img, nil
}

// FindBySkatepark lists the primary image first. An empty category matches all.
func (r *SkateparkImages) FindBySkatepark(ctx context.Context, skateparkID, category string) ([]Image, error) {
	q := `SELECT ` + imageColumns + ` FROM skatepark_images WHERE skatepark_id=$1`
	args := []any{skateparkID}
	if category != "" {
		q += ` AND category=$2`
		args = append(args, category)
	}
	q += ` ORDER BY is_primary DESC, created_at`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (r *SkateparkImages) Update(ctx context.Context, id string, p ImagePatch) (Image, error) {
	if err := validate.Struct(p); err != nil {
		return Image{}, err
	}
	if p.Caption == nil && p.Category == nil && p.IsPrimary == nil {
		return Image{}, ErrNoChanges
	}
	if p.IsPrimary != nil && *p.IsPrimary {
		cur, err := r.FindByID(ctx, id)
		if err != nil {
			return Image{}, err
		}
		if err := r.clearPrimary(ctx, cur.SkateparkID); err != nil {
			return Image{}, fmt.Errorf("failed to clear primary image: %w", err)
		}
	}
	var set setList
	if p.Caption != nil {
		set.add("caption", *p.Caption)
	}
	if p.Category != nil {
		set.add("category", *p.Category)
	}
	if p.IsPrimary != nil {
		set.add("is_primary", *p.IsPrimary)
	}
	q := `UPDATE skatepark_images SET ` + set.clause() + ` WHERE id=` + set.arg(id)
	if err := affected(r.db.Exec(ctx, q, set.args...)); err != nil {
		return Image{}, err
	}
	return r.FindByID(ctx, id)
}

func (r *SkateparkImages) Delete(ctx context.Context, id string) error {
	return affected(r.db.Exec(ctx, `DELETE FROM skatepark_images WHERE id=$1`, id))
}
