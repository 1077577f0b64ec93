package storage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

type User struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	FullName           *string    `json:"full_name,omitempty"`
	Bio                *string    `json:"bio,omitempty"`
	AvatarURL          *string    `json:"avatar_url,omitempty"`
	Stance             *string    `json:"stance,omitempty"`
	ExperienceLevel    *string    `json:"experience_level,omitempty"`
	Latitude           *float64   `json:"latitude,omitempty"`
	Longitude          *float64   `json:"longitude,omitempty"`
	LastLocationUpdate *time.Time `json:"last_location_update,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type NewUser struct {
	Username        string   `json:"username" validate:"required,min=3,max=30"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required,min=8"`
	FullName        *string  `json:"full_name" validate:"omitempty"`
	Bio             *string  `json:"bio" validate:"omitempty"`
	Stance          *string  `json:"stance" validate:"omitempty,oneof=regular goofy"`
	ExperienceLevel *string  `json:"experience_level" validate:"omitempty,oneof=beginner intermediate advanced pro"`
	Latitude        *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude       *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// UserPatch lists the fields Update may change. Nil fields are left alone.
type UserPatch struct {
	FullName        *string
	Bio             *string
	Stance          *string  `validate:"omitempty,oneof=regular goofy"`
	ExperienceLevel *string  `validate:"omitempty,oneof=beginner intermediate advanced pro"`
	AvatarURL       *string  `validate:"omitempty,url"`
	Latitude        *float64 `validate:"omitempty,latitude"`
	Longitude       *float64 `validate:"omitempty,longitude"`
}

// NearbyUser is a user row with its distance from the query point.
type NearbyUser struct {
	ID              string  `json:"id"`
	Username        string  `json:"username"`
	AvatarURL       *string `json:"avatar_url,omitempty"`
	ExperienceLevel *string `json:"experience_level,omitempty"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	DistanceMiles   float64 `json:"distance_miles"`
}

type Users struct {
	db Querier
}

const userColumns = `id, username, email, password_hash, full_name, bio, avatar_url, stance, experience_level,
	latitude, longitude, last_location_update, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.Bio, &u.AvatarURL,
		&u.Stance, &u.ExperienceLevel, &u.Latitude, &u.Longitude, &u.LastLocationUpdate, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *Users) Create(ctx context.Context, in NewUser) (User, error) {
	if err := validate.Struct(in); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	u := User{
		ID:              uuid.NewString(),
		Username:        in.Username,
		Email:           in.Email,
		PasswordHash:    string(hash),
		FullName:        in.FullName,
		Bio:             in.Bio,
		Stance:          in.Stance,
		ExperienceLevel: in.ExperienceLevel,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, full_name, bio, stance, experience_level, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Bio, u.Stance, u.ExperienceLevel, u.Latitude, u.Longitude)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

func (r *Users) FindByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

func (r *Users) FindByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

// FindNearby lists users seen in the last 24 hours within radiusMiles,
// closest first. A bounding box prefilters rows; one degree of latitude is
// taken as 69 miles.
func (r *Users) FindNearby(ctx context.Context, lat, lng, radiusMiles float64, page Page) ([]NearbyUser, error) {
	page = page.normalize()
	latDeg := radiusMiles / 69
	lngDeg := radiusMiles / (69 * math.Cos(lat*math.Pi/180))

	rows, err := r.db.Query(ctx, `
		SELECT id, username, avatar_url, experience_level, latitude, longitude,
			69 * SQRT(POWER(latitude - $1, 2) + POWER((longitude - $2) * COS(RADIANS($1)), 2)) AS distance_miles
		FROM users
		WHERE latitude BETWEEN $3 AND $4
			AND longitude BETWEEN $5 AND $6
			AND last_location_update >= NOW() - INTERVAL '24 hours'
		ORDER BY distance_miles
		LIMIT $7 OFFSET $8
	`, lat, lng, lat-latDeg, lat+latDeg, lng-lngDeg, lng+lngDeg, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NearbyUser
	for rows.Next() {
		var u NearbyUser
		if err := rows.Scan(&u.ID, &u.Username, &u.AvatarURL, &u.ExperienceLevel, &u.Latitude, &u.Longitude, &u.DistanceMiles); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Location is a position report. Pointers keep a missing coordinate from
// reading as 0.
type Location struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

func (r *Users) UpdateLocation(ctx context.Context, id string, loc Location) error {
	if err := validate.Struct(loc); err != nil {
		return err
	}
	return affected(r.db.Exec(ctx, `
		UPDATE users SET latitude=$1, longitude=$2, last_location_update=NOW()
		WHERE id=$3
	`, *loc.Latitude, *loc.Longitude, id))
}

// Update applies the non-nil fields of p and returns the stored row.
func (r *Users) Update(ctx context.Context, id string, p UserPatch) (User, error) {
	if err := validate.Struct(p); err != nil {
		return User{}, err
	}
	var set setList
	if p.FullName != nil {
		set.add("full_name", *p.FullName)
	}
	if p.Bio != nil {
		set.add("bio", *p.Bio)
	}
	if p.Stance != nil {
		set.add("stance", *p.Stance)
	}
	if p.ExperienceLevel != nil {
		set.add("experience_level", *p.ExperienceLevel)
	}
	if p.AvatarURL != nil {
		set.add("avatar_url", *p.AvatarURL)
	}
	if p.Latitude != nil {
		set.add("latitude", *p.Latitude)
	}
	if p.Longitude != nil {
		set.add("longitude", *p.Longitude)
	}
	if set.empty() {
		return User{}, ErrNoChanges
	}
	q := `UPDATE users SET ` + set.clause("updated_at=NOW()") + ` WHERE id=` + set.arg(id)
	if err := affected(r.db.Exec(ctx, q, set.args...)); err != nil {
		return User{}, err
	}
	return r.FindByID(ctx, id)
}

func (r *Users) Delete(ctx context.Context, id string) error {
	return affected(r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id))
}

// Count is used by the seeder to skip a populated database.
func (r *Users) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// VerifyPassword reports whether password matches the user's hash.
func VerifyPassword(u User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
