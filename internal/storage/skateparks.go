package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Skatepark struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      *string   `json:"description,omitempty"`
	Address          string    `json:"address"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	Country          string    `json:"country"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Features         []string  `json:"features"`
	DifficultyLevel  *string   `json:"difficulty_level,omitempty"`
	HoursOfOperation *string   `json:"hours_of_operation,omitempty"`
	IsFree           bool      `json:"is_free"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type NewSkatepark struct {
	Name             string   `json:"name" validate:"required,max=100"`
	Description      *string  `json:"description" validate:"omitempty"`
	Address          string   `json:"address" validate:"required"`
	City             string   `json:"city" validate:"required"`
	State            string   `json:"state" validate:"required"`
	Country          string   `json:"country" validate:"omitempty"`
	Latitude         *float64 `json:"latitude" validate:"required,latitude"`
	Longitude        *float64 `json:"longitude" validate:"required,longitude"`
	Features         []string `json:"features" validate:"omitempty"`
	DifficultyLevel  *string  `json:"difficulty_level" validate:"omitempty,oneof=beginner intermediate advanced all-levels"`
	HoursOfOperation *string  `json:"hours_of_operation" validate:"omitempty"`
	IsFree           *bool    `json:"is_free"`
}

type SkateparkPatch struct {
	Name             *string `validate:"omitempty,max=100"`
	Description      *string
	HoursOfOperation *string
	DifficultyLevel  *string `validate:"omitempty,oneof=beginner intermediate advanced all-levels"`
	Features         []string
	IsFree           *bool
}

// SkateparkFilter narrows FindAll. Empty fields match everything.
type SkateparkFilter struct {
	City            string
	State           string
	DifficultyLevel string
	Feature         string
	FreeOnly        bool
}

type StreetView struct {
	ID          string    `json:"id"`
	SkateparkID string    `json:"skatepark_id"`
	PanoID      string    `json:"pano_id"`
	Heading     float64   `json:"heading"`
	Pitch       float64   `json:"pitch"`
	Zoom        float64   `json:"zoom"`
	CreatedAt   time.Time `json:"created_at"`
}

type Skateparks struct {
	db     Querier
	images *SkateparkImages
}

const skateparkColumns = `id, name, description, address, city, state, country, latitude, longitude,
	features, difficulty_level, hours_of_operation, is_free, created_at, updated_at`

func scanSkatepark(row interface{ Scan(...any) error }) (Skatepark, error) {
	var p Skatepark
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Address, &p.City, &p.State, &p.Country,
		&p.Latitude, &p.Longitude, &p.Features, &p.DifficultyLevel, &p.HoursOfOperation, &p.IsFree,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Skateparks) Create(ctx context.Context, in NewSkatepark) (Skatepark, error) {
	if err := validate.Struct(in); err != nil {
		return Skatepark{}, err
	}
	p := Skatepark{
		ID:               uuid.NewString(),
		Name:             in.Name,
		Description:      in.Description,
		Address:          in.Address,
		City:             in.City,
		State:            in.State,
		Country:          in.Country,
		Latitude:         *in.Latitude,
		Longitude:        *in.Longitude,
		Features:         in.Features,
		DifficultyLevel:  in.DifficultyLevel,
		HoursOfOperation: in.HoursOfOperation,
		IsFree:           true,
	}
	if p.Country == "" {
		p.Country = "USA"
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	if in.IsFree != nil {
		p.IsFree = *in.IsFree
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO skateparks (id, name, description, address, city, state, country, latitude, longitude,
			features, difficulty_level, hours_of_operation, is_free)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Address, p.City, p.State, p.Country, p.Latitude, p.Longitude,
		p.Features, p.DifficultyLevel, p.HoursOfOperation, p.IsFree)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return Skatepark{}, fmt.Errorf("failed to insert skatepark: %w", err)
	}
	return p, nil
}

func (r *Skateparks) FindByID(ctx context.Context, id string) (Skatepark, error) {
	p, err := scanSkatepark(r.db.QueryRow(ctx, `SELECT `+skateparkColumns+` FROM skateparks WHERE id=$1`, id))
	if err != nil {
		return Skatepark{}, notFound(err)
	}
	return p, nil
}

// FindAll lists parks ordered by name.
func (r *Skateparks) FindAll(ctx context.Context, f SkateparkFilter, page Page) ([]Skatepark, error) {
	page = page.normalize()
	var (
		where []string
		args  []any
	)
	cond := func(expr string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(expr, len(args)))
	}
	if f.City != "" {
		cond("city ILIKE $%d", f.City)
	}
	if f.State != "" {
		cond("state ILIKE $%d", f.State)
	}
	if f.DifficultyLevel != "" {
		cond("difficulty_level=$%d", f.DifficultyLevel)
	}
	if f.Feature != "" {
		cond("$%d = ANY(features)", f.Feature)
	}
	if f.FreeOnly {
		where = append(where, "is_free")
	}

	q := `SELECT ` + skateparkColumns + ` FROM skateparks`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, page.Limit, page.Offset)
	q += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Skatepark
	for rows.Next() {
		p, err := scanSkatepark(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Skateparks) Update(ctx context.Context, id string, p SkateparkPatch) (Skatepark, error) {
	if err := validate.Struct(p); err != nil {
		return Skatepark{}, err
	}
	var set setList
	if p.Name != nil {
		set.add("name", *p.Name)
	}
	if p.Description != nil {
		set.add("description", *p.Description)
	}
	if p.HoursOfOperation != nil {
		set.add("hours_of_operation", *p.HoursOfOperation)
	}
	if p.DifficultyLevel != nil {
		set.add("difficulty_level", *p.DifficultyLevel)
	}
	if p.Features != nil {
		set.add("features", p.Features)
	}
	if p.IsFree != nil {
		set.add("is_free", *p.IsFree)
	}
	if set.empty() {
		return Skatepark{}, ErrNoChanges
	}
	q := `UPDATE skateparks SET ` + set.clause("updated_at=NOW()") + ` WHERE id=` + set.arg(id)
	if err := affected(r.db.Exec(ctx, q, set.args...)); err != nil {
		return Skatepark{}, err
	}
	return r.FindByID(ctx, id)
}

func (r *Skateparks) Delete(ctx context.Context, id string) error {
	return affected(r.db.Exec(ctx, `DELETE FROM skateparks WHERE id=$1`, id))
}

// AddImage attaches an image to the park. A primary image demotes any
// previous primary.
func (r *Skateparks) AddImage(ctx context.Context, skateparkID string, in NewImage) (Image, error) {
	in.SkateparkID = skateparkID
	return r.images.Create(ctx, in)
}

func (r *Skateparks) Images(ctx context.Context, skateparkID string) ([]Image, error) {
	return r.images.FindBySkatepark(ctx, skateparkID, "")
}

func (r *Skateparks) AddStreetView(ctx context.Context, skateparkID, panoID string, heading, pitch, zoom float64) (StreetView, error) {
	sv := StreetView{
		ID:          uuid.NewString(),
		SkateparkID: skateparkID,
		PanoID:      panoID,
		Heading:     heading,
		Pitch:       pitch,
		Zoom:        zoom,
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO street_views (id, skatepark_id, pano_id, heading, pitch, zoom)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, sv.ID, sv.SkateparkID, sv.PanoID, sv.Heading, sv.Pitch, sv.Zoom)
	if err := row.Scan(&sv.CreatedAt); err != nil {
		return StreetView{}, fmt.Errorf("failed to insert street view: %w", err)
	}
	return sv, nil
}

// StreetView returns the most recently added view for the park.
func (r *Skateparks) StreetView(ctx context.Context, skateparkID string) (StreetView, error) {
	var sv StreetView
	err := r.db.QueryRow(ctx, `
		SELECT id, skatepark_id, pano_id, heading, pitch, zoom, created_at
		FROM street_views WHERE skatepark_id=$1
		ORDER BY created_at DESC LIMIT 1
	`, skateparkID).Scan(&sv.ID, &sv.SkateparkID, &sv.PanoID, &sv.Heading, &sv.Pitch, &sv.Zoom, &sv.CreatedAt)
	if err != nil {
		return StreetView{}, notFound(err)
	}
	return sv, nil
}
