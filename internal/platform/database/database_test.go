package database

import (
	"errors"
	"testing"

	"github.com/SlpAus/workout-parks-backend/internal/platform/config"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type DatabaseSuite struct{}

var _ = Suite(&DatabaseSuite{})

type kv struct {
	ID    uint `gorm:"primarykey"`
	Value string
}

func (s *DatabaseSuite) TestMemoryDatabasesAreIsolated(c *C) {
	cfg := config.DatabaseConfig{Driver: config.DatabaseDriverSqlite, Sqlite: config.SqliteConfig{Path: MemoryPath}}

	first, err := Open(cfg, false)
	c.Assert(err, IsNil)
	defer Close(first)
	second, err := Open(cfg, false)
	c.Assert(err, IsNil)
	defer Close(second)

	c.Assert(first.AutoMigrate(&kv{}), IsNil)
	c.Assert(second.AutoMigrate(&kv{}), IsNil)
	c.Assert(first.Create(&kv{Value: "a"}).Error, IsNil)

	var count int64
	c.Assert(second.Model(&kv{}).Count(&count).Error, IsNil)
	c.Assert(count, Equals, int64(0))
	c.Assert(first.Model(&kv{}).Count(&count).Error, IsNil)
	c.Assert(count, Equals, int64(1))
}

func (s *DatabaseSuite) TestOpenRejectsUnknownDriver(c *C) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, false)
	c.Assert(err, NotNil)
}

func (s *DatabaseSuite) TestIsRetryableError(c *C) {
	c.Assert(IsRetryableError(nil), Equals, false)
	c.Assert(IsRetryableError(errors.New("database is locked")), Equals, true)
	c.Assert(IsRetryableError(errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)")), Equals, true)
	c.Assert(IsRetryableError(errors.New("UNIQUE constraint failed")), Equals, false)
}

func (s *DatabaseSuite) TestStatusTransitions(c *C) {
	st := NewStatus()
	c.Assert(st.IsHealthy(), Equals, true)

	st.SetInitialRunID("run-1")
	c.Assert(st.LastKnownRunID(), Equals, "run-1")

	st.Update(false, "ignored")
	c.Assert(st.IsHealthy(), Equals, false)
	c.Assert(st.LastKnownRunID(), Equals, "run-1")

	st.Update(true, "run-2")
	c.Assert(st.IsHealthy(), Equals, true)
	c.Assert(st.LastKnownRunID(), Equals, "run-2")
}
