package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SkateparkID string    `json:"skatepark_id"`
	Rating      int       `json:"rating"`
	Content     *string   `json:"content,omitempty"`
	Username    string    `json:"username,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewReview struct {
	UserID      string  `json:"user_id" validate:"required"`
	SkateparkID string  `json:"skatepark_id" validate:"required"`
	Rating      int     `json:"rating" validate:"min=1,max=5"`
	Content     *string `json:"content" validate:"omitempty,max=2000"`
}

type Reviews struct {
	db Querier
}

func (r *Reviews) Create(ctx context.Context, in NewReview) (Review, error) {
	if err := validate.Struct(in); err != nil {
		return Review{}, err
	}
	rv := Review{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		SkateparkID: in.SkateparkID,
		Rating:      in.Rating,
		Content:     in.Content,
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO reviews (id, user_id, skatepark_id, rating, content)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at
	`, rv.ID, rv.UserID, rv.SkateparkID, rv.Rating, rv.Content)
	if err := row.Scan(&rv.CreatedAt, &rv.UpdatedAt); err != nil {
		return Review{}, fmt.Errorf("failed to insert review: %w", err)
	}
	return rv, nil
}

func (r *Reviews) FindByID(ctx context.Context, id string) (Review, error) {
	var rv Review
	err := r.db.QueryRow(ctx, `
		SELECT r.id, r.user_id, r.skatepark_id, r.rating, r.content, u.username, u.avatar_url, r.created_at, r.updated_at
		FROM reviews r JOIN users u ON u.id = r.user_id
		WHERE r.id=$1
	`, id).Scan(&rv.ID, &rv.UserID, &rv.SkateparkID, &rv.Rating, &rv.Content, &rv.Username, &rv.AvatarURL, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return Review{}, notFound(err)
	}
	return rv, nil
}

// FindBySkatepark lists reviews newest first with the author's name and avatar.
func (r *Reviews) FindBySkatepark(ctx context.Context, skateparkID string, page Page) ([]Review, error) {
	page = page.normalize()
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.user_id, r.skatepark_id, r.rating, r.content, u.username, u.avatar_url, r.created_at, r.updated_at
		FROM reviews r JOIN users u ON u.id = r.user_id
		WHERE r.skatepark_id=$1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3
	`, skateparkID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.UserID, &rv.SkateparkID, &rv.Rating, &rv.Content, &rv.Username, &rv.AvatarURL, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// AverageRating is 0 for a park without reviews.
func (r *Reviews) AverageRating(ctx context.Context, skateparkID string) (float64, int, error) {
	var (
		avg   float64
		count int
	)
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*)
		FROM reviews WHERE skatepark_id=$1
	`, skateparkID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}

// Update changes a review owned by userID. Someone else's review reads as
// not found.
func (r *Reviews) Update(ctx context.Context, id, userID string, rating *int, content *string) error {
	var set setList
	if rating != nil {
		if *rating < 1 || *rating > 5 {
			return fmt.Errorf("rating must be between 1 and 5, got %d", *rating)
		}
		set.add("rating", *rating)
	}
	if content != nil {
		set.add("content", *content)
	}
	if set.empty() {
		return ErrNoChanges
	}
	q := `UPDATE reviews SET ` + set.clause("updated_at=NOW()") +
		` WHERE id=` + set.arg(id) + ` AND user_id=` + set.arg(userID)
	return affected(r.db.Exec(ctx, q, set.args...))
}

func (r *Reviews) Delete(ctx context.Context, id, userID string) error {
	return affected(r.db.Exec(ctx, `DELETE FROM reviews WHERE id=$1 AND user_id=$2`, id, userID))
}
