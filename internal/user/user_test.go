package user

import (
	"context"
	"testing"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/park"
	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/platform/config"
	"github.com/SlpAus/workout-parks-backend/internal/platform/database"
	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
	"github.com/SlpAus/workout-parks-backend/internal/record"
	"github.com/SlpAus/workout-parks-backend/pkg/geo"
	. "gopkg.in/check.v1"
	"gorm.io/gorm"
)

func Test(t *testing.T) { TestingT(t) }

type UserSuite struct {
	db      *gorm.DB
	store   docstore.Store
	users   *Repository
	records *record.Repository
	parks   *park.Repository
	service *Service
}

var _ = Suite(&UserSuite{})

func (s *UserSuite) SetUpTest(c *C) {
	db, err := database.Open(config.DatabaseConfig{
		Driver: config.DatabaseDriverSqlite,
		Sqlite: config.SqliteConfig{Path: database.MemoryPath},
	}, false)
	c.Assert(err, IsNil)
	s.db = db
	s.users = NewRepository(db)
	c.Assert(s.users.Migrate(), IsNil)
	s.records = record.NewRepository(db)
	c.Assert(s.records.Migrate(), IsNil)

	s.store = docstore.NewMemoryStore(docstore.Options{})
	s.parks = park.NewRepository(s.store)
	s.service = NewService(s.users, s.parks, s.records)
}

func (s *UserSuite) TearDownTest(c *C) {
	database.Close(s.db)
}

func (s *UserSuite) TestUpsertKeepsPoints(c *C) {
	ctx := context.Background()
	u, err := s.service.UpdateProfile(ctx, "alice", ProfileInput{DisplayName: "Alice"})
	c.Assert(err, IsNil)
	c.Assert(u.DisplayName, Equals, "Alice")

	c.Assert(s.db.Model(&User{}).Where("id = ?", "alice").UpdateColumn("points", 7).Error, IsNil)

	u, err = s.service.UpdateProfile(ctx, "alice", ProfileInput{DisplayName: "Alice K.", Email: "alice@example.com"})
	c.Assert(err, IsNil)
	c.Assert(u.DisplayName, Equals, "Alice K.")
	c.Assert(u.Email, Equals, "alice@example.com")
	c.Assert(u.Points, Equals, int64(7))
}

func (s *UserSuite) TestProfileValidation(c *C) {
	ctx := context.Background()
	_, err := s.service.UpdateProfile(ctx, "alice", ProfileInput{DisplayName: " "})
	c.Assert(apperr.CodeOf(err), Equals, apperr.CodeValidation)
	_, err = s.service.UpdateProfile(ctx, "alice", ProfileInput{DisplayName: "A", Email: "not-an-email"})
	c.Assert(apperr.CodeOf(err), Equals, apperr.CodeValidation)
	_, err = s.service.UpdateProfile(ctx, "", ProfileInput{DisplayName: "A"})
	c.Assert(apperr.CodeOf(err), Equals, apperr.CodeValidation)
}

func (s *UserSuite) TestDisplayNames(c *C) {
	ctx := context.Background()
	_, err := s.users.Upsert(ctx, User{ID: "alice", DisplayName: "Alice"})
	c.Assert(err, IsNil)
	_, err = s.users.Upsert(ctx, User{ID: "ghost"})
	c.Assert(err, IsNil)

	names, err := s.users.DisplayNames(ctx)
	c.Assert(err, IsNil)
	c.Assert(names, DeepEquals, map[string]string{"alice": "Alice"})
}

func (s *UserSuite) TestProfile(c *C) {
	ctx := context.Background()
	_, err := s.users.Upsert(ctx, User{ID: "alice", DisplayName: "Alice"})
	c.Assert(err, IsNil)

	_, err = s.parks.Create(ctx, park.Park{Name: "Mine", CreatedBy: "alice"})
	c.Assert(err, IsNil)
	_, err = s.parks.Create(ctx, park.Park{Name: "Other", CreatedBy: "bob"})
	c.Assert(err, IsNil)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	_, err = s.records.Append(ctx, record.Record{UserID: "alice", ParkID: "p", ChallengeType: "dips", Score: 3, Timestamp: base})
	c.Assert(err, IsNil)
	_, err = s.records.Append(ctx, record.Record{UserID: "alice", ParkID: "p", ChallengeType: "dips", Score: 5, Timestamp: base.Add(time.Hour)})
	c.Assert(err, IsNil)

	profile, err := s.service.Profile(ctx, "alice")
	c.Assert(err, IsNil)
	c.Assert(profile.User.DisplayName, Equals, "Alice")
	c.Assert(profile.Parks, HasLen, 1)
	c.Assert(profile.Parks[0].Name, Equals, "Mine")
	c.Assert(profile.Records, HasLen, 2)
	c.Assert(profile.Records[0].Score, Equals, int64(5))
}

func (s *UserSuite) TestProfileOfUnknownUser(c *C) {
	_, err := s.service.Profile(context.Background(), "nobody")
	c.Assert(apperr.CodeOf(err), Equals, apperr.CodeNotFound)
}

func (s *UserSuite) TestLocationOverwrite(c *C) {
	ctx := context.Background()
	locations := NewLocationStore(s.store)

	_, err := locations.Update(ctx, LocationSample{UserID: "alice", DisplayName: "Alice", Location: geo.Coordinates{Lat: 44.8, Lng: 20.4}})
	c.Assert(err, IsNil)
	_, err = locations.Update(ctx, LocationSample{UserID: "alice", DisplayName: "Alice", Location: geo.Coordinates{Lat: 44.9, Lng: 20.5}})
	c.Assert(err, IsNil)

	got, err := locations.Get(ctx, "alice")
	c.Assert(err, IsNil)
	c.Assert(got.Location, Equals, geo.Coordinates{Lat: 44.9, Lng: 20.5})
	c.Assert(got.Timestamp.IsZero(), Equals, false)

	q, err := s.store.List(ctx, docstore.Query{Collection: LocationCollection})
	c.Assert(err, IsNil)
	samples, err := DecodeSamples(q)
	c.Assert(err, IsNil)
	c.Assert(samples, HasLen, 1)
	c.Assert(samples[0].UserID, Equals, "alice")
}

func (s *UserSuite) TestLocationValidation(c *C) {
	locations := NewLocationStore(s.store)
	_, err := locations.Update(context.Background(), LocationSample{UserID: "alice", Location: geo.Coordinates{Lat: 91}})
	c.Assert(apperr.CodeOf(err), Equals, apperr.CodeValidation)

	_, err = locations.Get(context.Background(), "alice")
	c.Assert(apperr.CodeOf(err), Equals, apperr.CodeNotFound)
}
