// Package directory serves the static skatepark, shop and famous-spot
// listings shown on the map, plus the starter friends list.
package directory

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/example/skate-spots/internal/models"
)

//go:embed data/*.yaml
var dataFS embed.FS

type Skatepark struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Address     string            `yaml:"address" json:"address"`
	City        string            `yaml:"city" json:"city"`
	State       string            `yaml:"state" json:"state"`
	Lat         float64           `yaml:"lat" json:"lat"`
	Lng         float64           `yaml:"lng" json:"lng"`
	Description string            `yaml:"description" json:"description"`
	Hours       string            `yaml:"hours" json:"hours"`
	Difficulty  models.SkillLevel `yaml:"difficulty" json:"difficulty"`
	IsFree      bool              `yaml:"is_free" json:"isFree"`
	Features    []string          `yaml:"features" json:"features"`
	PhotoURL    string            `yaml:"photo_url" json:"photoUrl"`
}

func (s Skatepark) Coord() models.Coord { return models.Coord{Lat: s.Lat, Lng: s.Lng} }

// Home converts the park into the record stored as a profile's home park.
func (s Skatepark) Home() models.HomeSkatepark {
	return models.HomeSkatepark{ID: s.ID, Name: s.Name, Lat: s.Lat, Lng: s.Lng, PhotoURL: s.PhotoURL}
}

type Shop struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Address     string            `yaml:"address" json:"address"`
	City        string            `yaml:"city" json:"city"`
	State       string            `yaml:"state" json:"state"`
	Lat         float64           `yaml:"lat" json:"lat"`
	Lng         float64           `yaml:"lng" json:"lng"`
	Hours       string            `yaml:"hours" json:"hours"`
	Phone       string            `yaml:"phone" json:"phone"`
	Website     string            `yaml:"website" json:"website"`
	Description string            `yaml:"description" json:"description"`
	Features    []string          `yaml:"features" json:"features"`
	PhotoURL    string            `yaml:"photo_url" json:"photoUrl"`
	Social      map[string]string `yaml:"social" json:"social,omitempty"`
}

func (s Shop) Coord() models.Coord { return models.Coord{Lat: s.Lat, Lng: s.Lng} }

type FamousSpot struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Address       string   `yaml:"address" json:"address"`
	City          string   `yaml:"city" json:"city"`
	State         string   `yaml:"state" json:"state"`
	Lat           float64  `yaml:"lat" json:"lat"`
	Lng           float64  `yaml:"lng" json:"lng"`
	Description   string   `yaml:"description" json:"description"`
	Type          string   `yaml:"type" json:"type"`
	Features      []string `yaml:"features" json:"features"`
	SecurityLevel string   `yaml:"security_level" json:"securityLevel"`
	BestTime      string   `yaml:"best_time" json:"bestTime"`
	PhotoURL      string   `yaml:"photo_url" json:"photoUrl"`
	NotableTricks []string `yaml:"notable_tricks" json:"notableTricks"`
}

func (s FamousSpot) Coord() models.Coord { return models.Coord{Lat: s.Lat, Lng: s.Lng} }

type friendRow struct {
	UserID   string `yaml:"user_id"`
	Username string `yaml:"username"`
}

// Directory is an immutable set of listings. Accessors hand out copies.
type Directory struct {
	parks   []Skatepark
	shops   []Shop
	famous  []FamousSpot
	friends []models.Friend
}

// New builds a directory from in-memory listings, mostly for tests.
func New(parks []Skatepark, shops []Shop, famous []FamousSpot, friends []models.Friend) *Directory {
	return &Directory{
		parks:   append([]Skatepark(nil), parks...),
		shops:   append([]Shop(nil), shops...),
		famous:  append([]FamousSpot(nil), famous...),
		friends: append([]models.Friend(nil), friends...),
	}
}

// Load decodes the embedded fixtures.
func Load() (*Directory, error) {
	d := &Directory{}
	if err := decode("data/skateparks.yaml", &d.parks); err != nil {
		return nil, err
	}
	if err := decode("data/shops.yaml", &d.shops); err != nil {
		return nil, err
	}
	if err := decode("data/famous_spots.yaml", &d.famous); err != nil {
		return nil, err
	}
	var rows []friendRow
	if err := decode("data/friends.yaml", &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		d.friends = append(d.friends, models.Friend{UserID: r.UserID, Username: r.Username})
	}
	return d, nil
}

func decode(name string, out any) error {
	b, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

var (
	defaultOnce sync.Once
	defaultDir  *Directory
)

// Default returns the embedded directory. The fixtures are compiled in, so
// a decode failure is a programming error.
func Default() *Directory {
	defaultOnce.Do(func() {
		d, err := Load()
		if err != nil {
			panic(err)
		}
		defaultDir = d
	})
	return defaultDir
}

// InitialFriends is the friends list of a profile that has never saved one.
func InitialFriends() []models.Friend { return Default().Friends() }

func (d *Directory) Skateparks() []Skatepark { return append([]Skatepark(nil), d.parks...) }

func (d *Directory) Shops() []Shop { return append([]Shop(nil), d.shops...) }

func (d *Directory) FamousSpots() []FamousSpot { return append([]FamousSpot(nil), d.famous...) }

func (d *Directory) Friends() []models.Friend { return append([]models.Friend(nil), d.friends...) }

func (d *Directory) Skatepark(id string) (Skatepark, bool) {
	for _, p := range d.parks {
		if p.ID == id {
			return p, true
		}
	}
	return Skatepark{}, false
}

func (d *Directory) Shop(id string) (Shop, bool) {
	for _, s := range d.shops {
		if s.ID == id {
			return s, true
		}
	}
	return Shop{}, false
}

func (d *Directory) FamousSpot(id string) (FamousSpot, bool) {
	for _, s := range d.famous {
		if s.ID == id {
			return s, true
		}
	}
	return FamousSpot{}, false
}
