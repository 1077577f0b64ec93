package storage

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	id, username, email, password, fullName, bio, stance, level string
}

type seedPark struct {
	id, name, description, address, city, state string
	lat, lng                                    float64
	features                                    []string
	difficulty, hours                           string
}

type seedImage struct {
	id, parkID, url, caption string
	primary                  bool
}

type seedStreetView struct {
	id, parkID, panoID string
	heading            float64
}

var (
	seedUsers = []seedUser{
		{"user1", "tony_hawk", "tony@hawk.com", "sk8ordie", "Tony Hawk", "Professional skateboarder and video game character", "regular", "pro"},
		{"user2", "rodney_mullen", "rodney@mullen.com", "kickflip360", "Rodney Mullen", "Godfather of street skating", "regular", "pro"},
	}
	seedParks = []seedPark{
		{
			id: "park1", name: "Venice Beach Skatepark",
			description: "Iconic beachfront skatepark with smooth concrete and various features",
			address:     "1800 Ocean Front Walk", city: "Venice", state: "California",
			lat: 33.9850, lng: -118.4695,
			features:   []string{"Bowl", "Snake Run", "Street Section", "Handrails", "Quarter Pipes"},
			difficulty: "all-levels", hours: "9:00 AM - Sunset",
		},
		{
			id: "park2", name: "Stoner Skate Plaza",
			description: "Modern street plaza with perfect ledges and manual pads",
			address:     "1835 Stoner Ave", city: "Los Angeles", state: "California",
			lat: 34.0369, lng: -118.4529,
			features:   []string{"Ledges", "Manual Pads", "Stairs", "Handrails", "Flat Bars"},
			difficulty: "intermediate", hours: "8:00 AM - 10:00 PM",
		},
	}
	seedImages = []seedImage{
		{"img1", "park1", "/assets/parks/venice-1.jpg", "Aerial view of Venice Beach Skatepark", true},
		{"img2", "park1", "/assets/parks/venice-2.jpg", "Main bowl section", false},
		{"img3", "park2", "/assets/parks/stoner-1.jpg", "Overview of Stoner Skate Plaza", true},
	}
	seedStreetViews = []seedStreetView{
		{"sv1", "park1", "CAoSLEFGMVFpcE1GM3Y2UmJkS2F2Y1Z5NXFfalBrX0xGbDFJLXBqY0QtUDRGVzNN", 180},
		{"sv2", "park2", "CAoSLEFGMVFpcE43VGZYWHZHYnA5LVY2RGpfZGF1RHJyN0otNzRLLU9ES2JlOHpz", 270},
	}
)

// Seed loads the demo users and parks. It does nothing when any user exists,
// so it can run on every deploy. Users are written last and every insert
// skips rows that are already there, so a run that failed halfway is
// completed by the next one.
func Seed(ctx context.Context, db Querier, logger *slog.Logger) error {
	users := &Users{db: db}
	n, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if n > 0 {
		logger.Info("database already seeded", slog.Int("users", n))
		return nil
	}

	for _, p := range seedParks {
		if _, err := db.Exec(ctx, `
			INSERT INTO skateparks (id, name, description, address, city, state, latitude, longitude,
				features, difficulty_level, hours_of_operation, is_free)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,TRUE)
			ON CONFLICT (id) DO NOTHING
		`, p.id, p.name, p.description, p.address, p.city, p.state, p.lat, p.lng, p.features, p.difficulty, p.hours); err != nil {
			return fmt.Errorf("failed to seed skatepark %s: %w", p.id, err)
		}
	}
	for _, img := range seedImages {
		if _, err := db.Exec(ctx, `
			INSERT INTO skatepark_images (id, skatepark_id, url, caption, is_primary)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO NOTHING
		`, img.id, img.parkID, img.url, img.caption, img.primary); err != nil {
			return fmt.Errorf("failed to seed image %s: %w", img.id, err)
		}
	}
	for _, sv := range seedStreetViews {
		if _, err := db.Exec(ctx, `
			INSERT INTO street_views (id, skatepark_id, pano_id, heading, pitch, zoom)
			VALUES ($1,$2,$3,$4,0,1)
			ON CONFLICT (id) DO NOTHING
		`, sv.id, sv.parkID, sv.panoID, sv.heading); err != nil {
			return fmt.Errorf("failed to seed street view %s: %w", sv.id, err)
		}
	}
	for _, u := range seedUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", u.username, err)
		}
		if _, err := db.Exec(ctx, `
			INSERT INTO users (id, username, email, password_hash, full_name, bio, stance, experience_level)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO NOTHING
		`, u.id, u.username, u.email, string(hash), u.fullName, u.bio, u.stance, u.level); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.username, err)
		}
	}

	logger.Info("database seeded",
		slog.Int("users", len(seedUsers)),
		slog.Int("skateparks", len(seedParks)),
		slog.Int("images", len(seedImages)),
	)
	return nil
}
