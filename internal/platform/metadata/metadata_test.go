package metadata

import (
	"testing"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/config"
	"github.com/SlpAus/workout-parks-backend/internal/platform/database"
	. "gopkg.in/check.v1"
	"gorm.io/gorm"
)

func Test(t *testing.T) { TestingT(t) }

type MetadataSuite struct {
	db *gorm.DB
}

var _ = Suite(&MetadataSuite{})

func (s *MetadataSuite) SetUpTest(c *C) {
	db, err := database.Open(config.DatabaseConfig{
		Driver: config.DatabaseDriverSqlite,
		Sqlite: config.SqliteConfig{Path: database.MemoryPath},
	}, false)
	c.Assert(err, IsNil)
	s.db = db
	c.Assert(Migrate(db), IsNil)
}

func (s *MetadataSuite) TearDownTest(c *C) {
	database.Close(s.db)
}

func (s *MetadataSuite) TestMissingKeysHaveZeroValues(c *C) {
	v, err := GetValue(s.db, "nothing")
	c.Assert(err, IsNil)
	c.Assert(v, Equals, "")

	at, err := GetLastSnapshotAt(s.db)
	c.Assert(err, IsNil)
	c.Assert(at.IsZero(), Equals, true)

	n, err := GetSnapshotParkCount(s.db)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 0)
}

func (s *MetadataSuite) TestUpsert(c *C) {
	at := time.Date(2026, 7, 1, 9, 30, 0, 123, time.UTC)
	c.Assert(SetLastSnapshotAt(s.db, at), IsNil)
	c.Assert(SetSnapshotParkCount(s.db, 3), IsNil)
	c.Assert(SetSnapshotParkCount(s.db, 4), IsNil)

	got, err := GetLastSnapshotAt(s.db)
	c.Assert(err, IsNil)
	c.Assert(got.Equal(at), Equals, true)

	n, err := GetSnapshotParkCount(s.db)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 4)

	var rows int64
	c.Assert(s.db.Model(&Metadata{}).Count(&rows).Error, IsNil)
	c.Assert(rows, Equals, int64(2))
}

func (s *MetadataSuite) TestCorruptValue(c *C) {
	c.Assert(SetValue(s.db, SnapshotParkCountKey, "many"), IsNil)
	_, err := GetSnapshotParkCount(s.db)
	c.Assert(err, ErrorMatches, ".*snapshot_park_count.*")
}
