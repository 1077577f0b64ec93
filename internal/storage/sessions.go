package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is a scheduled meetup at a skatepark.
type Session struct {
	ID              string     `json:"id"`
	CreatorID       string     `json:"creator_id"`
	SkateparkID     string     `json:"skatepark_id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	MaxParticipants *int       `json:"max_participants,omitempty"`
	SkillLevel      *string    `json:"skill_level,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type NewSession struct {
	CreatorID       string     `validate:"required"`
	SkateparkID     string     `validate:"required"`
	Title           string     `validate:"required,max=100"`
	Description     *string    `validate:"omitempty"`
	StartTime       time.Time  `validate:"required"`
	EndTime         *time.Time `validate:"omitempty,gtfield=StartTime"`
	MaxParticipants *int       `validate:"omitempty,min=1"`
	SkillLevel      *string    `validate:"omitempty,oneof=beginner intermediate advanced all-levels"`
}

type ParticipantStatus string

const (
	StatusGoing    ParticipantStatus = "going"
	StatusMaybe    ParticipantStatus = "maybe"
	StatusNotGoing ParticipantStatus = "not_going"
)

func (s ParticipantStatus) Valid() bool {
	switch s {
	case StatusGoing, StatusMaybe, StatusNotGoing:
		return true
	}
	return false
}

type SessionParticipant struct {
	SessionID string            `json:"session_id"`
	UserID    string            `json:"user_id"`
	Username  string            `json:"username"`
	Status    ParticipantStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

type Sessions struct {
	db Querier
}

func (r *Sessions) Create(ctx context.Context, in NewSession) (Session, error) {
	if err := validate.Struct(in); err != nil {
		return Session{}, err
	}
	s := Session{
		ID:              uuid.NewString(),
		CreatorID:       in.CreatorID,
		SkateparkID:     in.SkateparkID,
		Title:           in.Title,
		Description:     in.Description,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		MaxParticipants: in.MaxParticipants,
		SkillLevel:      in.SkillLevel,
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO sessions (id, creator_id, skatepark_id, title, description, start_time, end_time, max_participants, skill_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at
	`, s.ID, s.CreatorID, s.SkateparkID, s.Title, s.Description, s.StartTime, s.EndTime, s.MaxParticipants, s.SkillLevel)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Session{}, fmt.Errorf("failed to insert session: %w", err)
	}
	return s, nil
}

func (r *Sessions) FindByID(ctx context.Context, id string) (Session, error) {
	var s Session
	err := r.db.QueryRow(ctx, `
		SELECT id, creator_id, skatepark_id, title, description, start_time, end_time, max_participants, skill_level, created_at
		FROM sessions WHERE id=$1
	`, id).Scan(&s.ID, &s.CreatorID, &s.SkateparkID, &s.Title, &s.Description, &s.StartTime, &s.EndTime,
		&s.MaxParticipants, &s.SkillLevel, &s.CreatedAt)
	if err != nil {
		return Session{}, notFound(err)
	}
	return s, nil
}

func (r *Sessions) Delete(ctx context.Context, id, creatorID string) error {
	return affected(r.db.Exec(ctx, `DELETE FROM sessions WHERE id=$1 AND creator_id=$2`, id, creatorID))
}

// SetParticipant records or changes a user's RSVP.
func (r *Sessions) SetParticipant(ctx context.Context, sessionID, userID string, status ParticipantStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown participant status %q", status)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO session_participants (session_id, user_id, status)
		VALUES ($1,$2,$3)
		ON CONFLICT (session_id, user_id) DO UPDATE SET status = EXCLUDED.status
	`, sessionID, userID, string(status))
	return err
}

func (r *Sessions) Participants(ctx context.Context, sessionID string) ([]SessionParticipant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.session_id, p.user_id, u.username, p.status, p.created_at
		FROM session_participants p JOIN users u ON u.id = p.user_id
		WHERE p.session_id=$1
		ORDER BY p.created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionParticipant
	for rows.Next() {
		var (
			p      SessionParticipant
			status string
		)
		if err := rows.Scan(&p.SessionID, &p.UserID, &p.Username, &status, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Status = ParticipantStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}
