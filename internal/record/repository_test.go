package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/config"
	"github.com/SlpAus/workout-parks-backend/internal/platform/database"
	. "gopkg.in/check.v1"
	"gorm.io/gorm"
)

func Test(t *testing.T) { TestingT(t) }

type RepositorySuite struct {
	db   *gorm.DB
	repo *Repository
}

var _ = Suite(&RepositorySuite{})

func (s *RepositorySuite) SetUpTest(c *C) {
	db, err := database.Open(config.DatabaseConfig{
		Driver: config.DatabaseDriverSqlite,
		Sqlite: config.SqliteConfig{Path: database.MemoryPath},
	}, false)
	c.Assert(err, IsNil)
	s.db = db
	s.repo = NewRepository(db)
	c.Assert(s.repo.Migrate(), IsNil)
}

func (s *RepositorySuite) TearDownTest(c *C) {
	database.Close(s.db)
}

func (s *RepositorySuite) TestAppendAssignsIDAndTimestamp(c *C) {
	rec, err := s.repo.Append(context.Background(), Record{UserID: "alice", ParkID: "p1", ChallengeType: "pull-ups", Score: 10})
	c.Assert(err, IsNil)
	c.Assert(rec.ID, Not(Equals), uint(0))
	c.Assert(rec.Timestamp.IsZero(), Equals, false)
}

func (s *RepositorySuite) TestQueries(c *C) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	inputs := []Record{
		{UserID: "alice", ParkID: "p1", ChallengeType: "pull-ups", Score: 10, DisplayName: "Alice", Timestamp: base},
		{UserID: "bob", ParkID: "p1", ChallengeType: "pull-ups", Score: 8, DisplayName: "Bob", Timestamp: base.Add(time.Minute)},
		{UserID: "alice", ParkID: "p2", ChallengeType: "dips", Score: 5, DisplayName: "Alice K.", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, in := range inputs {
		_, err := s.repo.Append(ctx, in)
		c.Assert(err, IsNil)
	}

	all, err := s.repo.All(ctx)
	c.Assert(err, IsNil)
	c.Assert(all, HasLen, 3)
	c.Assert(all[0].UserID, Equals, "alice")
	c.Assert(all[1].UserID, Equals, "bob")

	mine, err := s.repo.ByUser(ctx, "alice")
	c.Assert(err, IsNil)
	c.Assert(mine, HasLen, 2)
	c.Assert(mine[0].ParkID, Equals, "p2")
	c.Assert(mine[1].ParkID, Equals, "p1")

	p1, err := s.repo.ByPark(ctx, "p1")
	c.Assert(err, IsNil)
	c.Assert(p1, HasLen, 2)
	c.Assert(p1[0].ID < p1[1].ID, Equals, true)
}

func (s *RepositorySuite) TestRecordsAreImmutable(c *C) {
	rec, err := s.repo.Append(context.Background(), Record{UserID: "alice", ParkID: "p1", ChallengeType: "pull-ups", Score: 10})
	c.Assert(err, IsNil)

	err = s.db.Model(&rec).Update("score", 99).Error
	c.Assert(errors.Is(err, ErrImmutable), Equals, true)

	err = s.db.Delete(&rec).Error
	c.Assert(errors.Is(err, ErrImmutable), Equals, true)

	all, err := s.repo.All(context.Background())
	c.Assert(err, IsNil)
	c.Assert(all, HasLen, 1)
	c.Assert(all[0].Score, Equals, int64(10))
}
