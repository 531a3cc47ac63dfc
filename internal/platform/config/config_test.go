package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type ConfigSuite struct{}

var _ = Suite(&ConfigSuite{})

func writeConfig(c *C, body string) string {
	dir := c.MkDir()
	err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644)
	c.Assert(err, IsNil)
	return dir
}

func (s *ConfigSuite) TestDefaultsWithoutFile(c *C) {
	cfg, err := LoadConfig(c.MkDir())
	c.Assert(err, IsNil)

	c.Assert(cfg.Server.Address, Equals, ":8080")
	c.Assert(cfg.Database.Driver, Equals, DatabaseDriverSqlite)
	c.Assert(cfg.Store.Driver, Equals, StoreDriverMemory)
	c.Assert(cfg.Store.MaxAttempts, Equals, 5)
	c.Assert(cfg.Proximity.ThresholdMeters, Equals, 200.0)
	c.Assert(cfg.Proximity.SessionTTL, Equals, 30*time.Minute)
	c.Assert(cfg.Backup.Interval, Equals, 10*time.Minute)
	c.Assert(cfg.Leaderboard.DefaultLimit, Equals, 50)
}

func (s *ConfigSuite) TestFileValues(c *C) {
	dir := writeConfig(c, `
server:
  address: ":9000"
  cors:
    allowedOrigins: ["https://parks.example"]
database:
  driver: sqlite
  sqlite:
    path: "test.db"
store:
  driver: redis
  maxAttempts: 8
proximity:
  thresholdMeters: 150
backup:
  interval: 30s
`)
	cfg, err := LoadConfig(dir)
	c.Assert(err, IsNil)

	c.Assert(cfg.Server.Address, Equals, ":9000")
	c.Assert(cfg.Server.Cors.AllowedOrigins, DeepEquals, []string{"https://parks.example"})
	c.Assert(cfg.Database.Sqlite.Path, Equals, "test.db")
	c.Assert(cfg.Store.Driver, Equals, StoreDriverRedis)
	c.Assert(cfg.Store.MaxAttempts, Equals, 8)
	c.Assert(cfg.Proximity.ThresholdMeters, Equals, 150.0)
	c.Assert(cfg.Backup.Interval, Equals, 30*time.Second)
}

func (s *ConfigSuite) TestEnvOverridesFile(c *C) {
	dir := writeConfig(c, "store:\n  maxAttempts: 3\n")
	os.Setenv("STORE_MAXATTEMPTS", "11")
	defer os.Unsetenv("STORE_MAXATTEMPTS")

	cfg, err := LoadConfig(dir)
	c.Assert(err, IsNil)
	c.Assert(cfg.Store.MaxAttempts, Equals, 11)
}

func (s *ConfigSuite) TestRejectsUnknownDriver(c *C) {
	dir := writeConfig(c, "store:\n  driver: etcd\n")
	_, err := LoadConfig(dir)
	c.Assert(err, ErrorMatches, ".*未知的存储驱动.*")
}

func (s *ConfigSuite) TestRejectsNonPositiveAttempts(c *C) {
	dir := writeConfig(c, "store:\n  maxAttempts: 0\n")
	_, err := LoadConfig(dir)
	c.Assert(err, ErrorMatches, ".*maxAttempts.*")
}

func (s *ConfigSuite) TestPostgresNeedsDSN(c *C) {
	dir := writeConfig(c, "database:\n  driver: postgres\n")
	_, err := LoadConfig(dir)
	c.Assert(err, ErrorMatches, ".*dsn.*")
}
