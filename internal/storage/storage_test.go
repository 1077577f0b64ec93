package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/example/skate-spots/internal/logging"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func strp(s string) *string { return &s }

func f64p(v float64) *float64 { return &v }

var userCols = []string{"id", "username", "email", "password_hash", "full_name", "bio", "avatar_url", "stance",
	"experience_level", "latitude", "longitude", "last_location_update", "created_at", "updated_at"}

func TestUsersCreateHashesPassword(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "tony_hawk", "tony@hawk.com", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	repos := New(mock)
	u, err := repos.Users.Create(context.Background(), NewUser{
		Username: "tony_hawk",
		Email:    "tony@hawk.com",
		Password: "sk8ordie",
		Stance:   strp("regular"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" || u.PasswordHash == "sk8ordie" {
		t.Fatalf("unexpected user %+v", u)
	}
	if !VerifyPassword(u, "sk8ordie") || VerifyPassword(u, "wrong-pass") {
		t.Fatalf("password check mismatch")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUsersCreateValidates(t *testing.T) {
	repos := New(newMock(t))
	_, err := repos.Users.Create(context.Background(), NewUser{Username: "tk", Email: "nope", Password: "short"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	_, err = repos.Users.Create(context.Background(), NewUser{
		Username: "tony_hawk", Email: "tony@hawk.com", Password: "sk8ordie", Stance: strp("mongo"),
	})
	if err == nil {
		t.Fatalf("expected stance to be rejected")
	}
}

func TestUsersFindByIDNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`(?s)SELECT id, username, email .* FROM users WHERE id=\$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := New(mock).Users.FindByID(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUsersUpdateOnlyTouchesGivenFields(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectExec(`UPDATE users SET bio=\$1, stance=\$2, updated_at=NOW\(\) WHERE id=\$3`).
		WithArgs("new bio", "goofy", "user1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs("user1").
		WillReturnRows(pgxmock.NewRows(userCols).AddRow("user1", "tony_hawk", "tony@hawk.com", "hash", nil,
			strp("new bio"), nil, strp("goofy"), nil, nil, nil, nil, now, now))

	u, err := New(mock).Users.Update(context.Background(), "user1", UserPatch{Bio: strp("new bio"), Stance: strp("goofy")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Bio == nil || *u.Bio != "new bio" || u.FullName != nil {
		t.Fatalf("unexpected user %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUsersUpdateWithoutFields(t *testing.T) {
	_, err := New(newMock(t)).Users.Update(context.Background(), "user1", UserPatch{})
	if !errors.Is(err, ErrNoChanges) {
		t.Fatalf("expected ErrNoChanges, got %v", err)
	}
}

func TestUsersFindNearbyUsesBoundingBox(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM users\s+WHERE latitude BETWEEN \$3 AND \$4`).
		WithArgs(34.0, -118.0, 34.0-69.0/69, 34.0+69.0/69, pgxmock.AnyArg(), pgxmock.AnyArg(), 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "avatar_url", "experience_level", "latitude", "longitude", "distance_miles"}).
			AddRow("user2", "rodney_mullen", nil, strp("pro"), 34.01, -118.01, 0.9))

	got, err := New(mock).Users.FindNearby(context.Background(), 34, -118, 69, Page{})
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 1 || got[0].Username != "rodney_mullen" || got[0].DistanceMiles != 0.9 {
		t.Fatalf("unexpected nearby users %+v", got)
	}
}

func TestUsersDeleteMissing(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM users`).WithArgs("ghost").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if err := New(mock).Users.Delete(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSkateparksCreateDefaults(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO skateparks`).
		WithArgs(pgxmock.AnyArg(), "Burnside", pgxmock.AnyArg(), "SE 2nd Ave", "Portland", "Oregon", "USA", 45.52, -122.66,
			[]string{}, pgxmock.AnyArg(), pgxmock.AnyArg(), true).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	p, err := New(mock).Skateparks.Create(context.Background(), NewSkatepark{
		Name: "Burnside", Address: "SE 2nd Ave", City: "Portland", State: "Oregon", Latitude: f64p(45.52), Longitude: f64p(-122.66),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Country != "USA" || !p.IsFree {
		t.Fatalf("expected defaults, got %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSkateparksCreateRequiresCoordinates(t *testing.T) {
	_, err := New(newMock(t)).Skateparks.Create(context.Background(), NewSkatepark{
		Name: "Burnside", Address: "SE 2nd Ave", City: "Portland", State: "Oregon",
	})
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Fatalf("expected both coordinates to be rejected, got %v", err)
	}
}

func TestUsersUpdateLocation(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET latitude=\$1, longitude=\$2`).
		WithArgs(0.0, -118.0, "user1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	users := New(mock).Users
	if err := users.UpdateLocation(context.Background(), "user1", Location{Latitude: f64p(0), Longitude: f64p(-118)}); err != nil {
		t.Fatalf("update location: %v", err)
	}
	var verrs validator.ValidationErrors
	if err := users.UpdateLocation(context.Background(), "user1", Location{Longitude: f64p(-118)}); !errors.As(err, &verrs) {
		t.Fatalf("expected missing latitude to be rejected, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSkateparksFindAllFilters(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	cols := []string{"id", "name", "description", "address", "city", "state", "country", "latitude", "longitude",
		"features", "difficulty_level", "hours_of_operation", "is_free", "created_at", "updated_at"}
	mock.ExpectQuery(`WHERE city ILIKE \$1 AND \$2 = ANY\(features\) AND is_free ORDER BY name LIMIT \$3 OFFSET \$4`).
		WithArgs("Venice", "Bowl", 5, 10).
		WillReturnRows(pgxmock.NewRows(cols).AddRow("park1", "Venice Beach Skatepark", nil, "1800 Ocean Front Walk",
			"Venice", "California", "USA", 33.985, -118.4695, []string{"Bowl"}, strp("all-levels"), nil, true, now, now))

	parks, err := New(mock).Skateparks.FindAll(context.Background(),
		SkateparkFilter{City: "Venice", Feature: "Bowl", FreeOnly: true}, Page{Limit: 5, Offset: 10})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(parks) != 1 || parks[0].Features[0] != "Bowl" {
		t.Fatalf("unexpected parks %+v", parks)
	}
}

func TestSkateparksAddPrimaryImageDemotesOthers(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE skatepark_images SET is_primary=FALSE`).
		WithArgs("park1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO skatepark_images`).
		WithArgs(pgxmock.AnyArg(), "park1", "https://img.example/venice.jpg", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), true).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	img, err := New(mock).Skateparks.AddImage(context.Background(), "park1", NewImage{
		URL: "https://img.example/venice.jpg", IsPrimary: true,
	})
	if err != nil {
		t.Fatalf("add image: %v", err)
	}
	if img.SkateparkID != "park1" || !img.IsPrimary {
		t.Fatalf("unexpected image %+v", img)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSkateparksStreetViewLatest(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM street_views WHERE skatepark_id=\$1\s+ORDER BY created_at DESC LIMIT 1`).
		WithArgs("park2").
		WillReturnRows(pgxmock.NewRows([]string{"id", "skatepark_id", "pano_id", "heading", "pitch", "zoom", "created_at"}).
			AddRow("sv2", "park2", "pano", 270.0, 0.0, 1.0, time.Now()))

	sv, err := New(mock).Skateparks.StreetView(context.Background(), "park2")
	if err != nil {
		t.Fatalf("street view: %v", err)
	}
	if sv.Heading != 270 {
		t.Fatalf("unexpected street view %+v", sv)
	}
}

func TestReviewsAverageRating(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`COALESCE\(AVG\(rating\), 0\)`).
		WithArgs("park1").
		WillReturnRows(pgxmock.NewRows([]string{"avg", "count"}).AddRow(4.5, 2))

	avg, n, err := New(mock).Reviews.AverageRating(context.Background(), "park1")
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	if avg != 4.5 || n != 2 {
		t.Fatalf("unexpected average %f over %d", avg, n)
	}
}

func TestReviewsUpdateScopedToAuthor(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE reviews SET rating=\$1, updated_at=NOW\(\) WHERE id=\$2 AND user_id=\$3`).
		WithArgs(3, "rev1", "user2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	rating := 3
	err := New(mock).Reviews.Update(context.Background(), "rev1", "user2", &rating, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for someone else's review, got %v", err)
	}

	bad := 6
	if err := New(mock).Reviews.Update(context.Background(), "rev1", "user1", &bad, nil); err == nil {
		t.Fatalf("expected rating range error")
	}
}

func TestAssetsDecodeMetadata(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM assets WHERE user_id=\$1 AND type=\$2`).
		WithArgs("user1", "video").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "type", "url", "thumbnail_url", "mime_type", "size", "metadata", "created_at"}).
			AddRow("a1", "user1", "video", "https://cdn.example/a1.mp4", nil, "video/mp4", int64(2048), []byte(`{"fps":60}`), time.Now()))

	assets, err := New(mock).Assets.FindByUser(context.Background(), "user1", "video")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(assets) != 1 || assets[0].Metadata["fps"] != float64(60) {
		t.Fatalf("unexpected assets %+v", assets)
	}
}

func TestTrickMediaFindByUserPaged(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM trick_media WHERE user_id=\$1 AND type=\$2`).
		WithArgs("user1", "video", 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "trick_id", "user_id", "type", "url", "thumbnail_url", "duration", "created_at"}))

	media, err := New(mock).TrickMedia.FindByUser(context.Background(), "user1", "video", Page{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(media) != 0 {
		t.Fatalf("expected no media, got %+v", media)
	}
}

func TestSessionsSetParticipant(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`ON CONFLICT \(session_id, user_id\) DO UPDATE`).
		WithArgs("s1", "user2", "maybe").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sessions := New(mock).Sessions
	if err := sessions.SetParticipant(context.Background(), "s1", "user2", StatusMaybe); err != nil {
		t.Fatalf("set participant: %v", err)
	}
	if err := sessions.SetParticipant(context.Background(), "s1", "user2", "late"); err == nil {
		t.Fatalf("expected unknown status error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSeedSkipsPopulatedDatabase(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	if err := Seed(context.Background(), mock, logging.Discard()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func anyArgs(first any, n int) []any {
	args := []any{first}
	for i := 1; i < n; i++ {
		args = append(args, pgxmock.AnyArg())
	}
	return args
}

func TestSeedInsertsDemoRows(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	for _, p := range seedParks {
		mock.ExpectExec(`(?s)INSERT INTO skateparks .* ON CONFLICT \(id\) DO NOTHING`).
			WithArgs(anyArgs(p.id, 11)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for _, img := range seedImages {
		mock.ExpectExec(`INSERT INTO skatepark_images`).
			WithArgs(anyArgs(img.id, 5)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for _, sv := range seedStreetViews {
		mock.ExpectExec(`INSERT INTO street_views`).
			WithArgs(anyArgs(sv.id, 4)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for _, u := range seedUsers {
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(anyArgs(u.id, 8)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	if err := Seed(context.Background(), mock, logging.Discard()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSeedFailureLeavesUsersUnwritten(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO skateparks`).
		WithArgs(anyArgs(seedParks[0].id, 11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO skateparks`).
		WithArgs(anyArgs(seedParks[1].id, 11)...).
		WillReturnError(errors.New("connection reset"))

	if err := Seed(context.Background(), mock, logging.Discard()); err == nil {
		t.Fatalf("expected seed error")
	}
	// No user row was written, so the next run does not skip.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
