package leaderboard

import (
	"context"
	"errors"
	"testing"

	"github.com/SlpAus/workout-parks-backend/internal/park"
	"github.com/SlpAus/workout-parks-backend/internal/record"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type ComputeSuite struct{}

var _ = Suite(&ComputeSuite{})

func rec(user, typ string, score int64) record.Record {
	return record.Record{UserID: user, ChallengeType: typ, Score: score}
}

func (s *ComputeSuite) TestSumOfPerTypeMaxima(c *C) {
	records := []record.Record{
		rec("alice", "pull-ups", 10),
		rec("alice", "pull-ups", 6),
		rec("alice", "push-ups", 5),
		rec("alice", "dips", 5),
		rec("bob", "pull-ups", 12),
		rec("bob", "dips", 6),
	}
	entries := Compute(records, map[string]string{"alice": "Alice", "bob": "Bob"})
	c.Assert(entries, HasLen, 2)

	c.Assert(entries[0].Rank, Equals, 1)
	c.Assert(entries[0].UserID, Equals, "alice")
	c.Assert(entries[0].TotalScore, Equals, int64(20))
	c.Assert(entries[1].Rank, Equals, 2)
	c.Assert(entries[1].UserName, Equals, "Bob")
	c.Assert(entries[1].TotalScore, Equals, int64(18))
	// 没有成绩的项目按0计
	c.Assert(entries[1].BestScores[park.PushUps], Equals, int64(0))
	c.Assert(entries[1].BestScores, HasLen, len(park.DefaultChallengeTypes))
}

func (s *ComputeSuite) TestTieBreakByUserID(c *C) {
	entries := Compute([]record.Record{
		rec("zed", "dips", 7),
		rec("amy", "pull-ups", 7),
		rec("max", "push-ups", 7),
	}, nil)
	c.Assert(entries, HasLen, 3)
	c.Assert([]string{entries[0].UserID, entries[1].UserID, entries[2].UserID}, DeepEquals, []string{"amy", "max", "zed"})
	c.Assert([]int{entries[0].Rank, entries[1].Rank, entries[2].Rank}, DeepEquals, []int{1, 2, 3})
}

func (s *ComputeSuite) TestUnknownTypesIgnored(c *C) {
	entries := Compute([]record.Record{
		rec("alice", "muscle-ups", 100),
		rec("bob", "dips", 1),
	}, nil)
	c.Assert(entries, HasLen, 2)
	c.Assert(entries[0].UserID, Equals, "bob")
	c.Assert(entries[0].TotalScore, Equals, int64(1))

	// 只有未知项目的用户得到一个全零条目
	c.Assert(entries[1].UserID, Equals, "alice")
	c.Assert(entries[1].Rank, Equals, 2)
	c.Assert(entries[1].TotalScore, Equals, int64(0))
	c.Assert(entries[1].BestScores, DeepEquals, map[park.ChallengeType]int64{park.PullUps: 0, park.PushUps: 0, park.Dips: 0})
}

func (s *ComputeSuite) TestNameFallback(c *C) {
	records := []record.Record{
		{UserID: "alice", ChallengeType: "dips", Score: 3, DisplayName: "Old Alice"},
		{UserID: "alice", ChallengeType: "dips", Score: 1, DisplayName: "Alice K."},
		{UserID: "bob", ChallengeType: "dips", Score: 2, DisplayName: "Bobby"},
		{UserID: "carol", ChallengeType: "dips", Score: 1},
	}
	entries := Compute(records, map[string]string{"bob": "Bob"})
	names := map[string]string{}
	for _, e := range entries {
		names[e.UserID] = e.UserName
	}
	c.Assert(names, DeepEquals, map[string]string{"alice": "Alice K.", "bob": "Bob", "carol": UnknownUserName})
}

func (s *ComputeSuite) TestEmptyLog(c *C) {
	c.Assert(Compute(nil, nil), HasLen, 0)
}

func (s *ComputeSuite) TestLimit(c *C) {
	entries := Compute([]record.Record{rec("a", "dips", 3), rec("b", "dips", 2), rec("c", "dips", 1)}, nil)
	c.Assert(Limit(entries, 2), HasLen, 2)
	c.Assert(Limit(entries, 10), HasLen, 3)
	c.Assert(Limit(entries, 0), HasLen, 3)
}

type fakeRecords struct {
	records []record.Record
	err     error
}

func (f fakeRecords) All(context.Context) ([]record.Record, error) { return f.records, f.err }

type fakeNames map[string]string

func (f fakeNames) DisplayNames(context.Context) (map[string]string, error) { return f, nil }

type BuilderSuite struct{}

var _ = Suite(&BuilderSuite{})

func (s *BuilderSuite) TestBuild(c *C) {
	b := NewBuilder(fakeRecords{records: []record.Record{rec("alice", "dips", 4)}}, fakeNames{"alice": "Alice"})
	entries, err := b.Build(context.Background())
	c.Assert(err, IsNil)
	c.Assert(entries, HasLen, 1)
	c.Assert(entries[0].UserName, Equals, "Alice")
}

func (s *BuilderSuite) TestBuildPropagatesErrors(c *C) {
	boom := errors.New("boom")
	b := NewBuilder(fakeRecords{err: boom}, fakeNames{})
	_, err := b.Build(context.Background())
	c.Assert(err, Equals, boom)
}
