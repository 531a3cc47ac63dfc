package park

import (
	"context"
	"testing"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
	"github.com/SlpAus/workout-parks-backend/pkg/geo"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type FilterSuite struct {
	parks []Park
}

var _ = Suite(&FilterSuite{})

var origin = geo.Coordinates{Lat: 44.8000, Lng: 20.4600}

func ids(parks []Park) []string {
	out := make([]string, len(parks))
	for i, p := range parks {
		out[i] = p.ID
	}
	return out
}

func (s *FilterSuite) SetUpTest(c *C) {
	// 纬度每 0.001 度约 111 米
	s.parks = []Park{
		{ID: "far", Location: geo.Coordinates{Lat: 44.9000, Lng: 20.4600}, Rating: RatingAggregate{Average: 4.5}},
		{ID: "near", Location: geo.Coordinates{Lat: 44.8010, Lng: 20.4600}, Rating: RatingAggregate{Average: 3.0}},
		{ID: "mid", Location: geo.Coordinates{Lat: 44.8300, Lng: 20.4600}, Rating: RatingAggregate{Average: 4.5}},
		{ID: "remote", Location: geo.Coordinates{Lat: 46.0000, Lng: 20.4600}, Rating: RatingAggregate{Average: 5.0}},
	}
}

func (s *FilterSuite) TestFilterByRating(c *C) {
	c.Assert(ids(FilterByRating(s.parks, 4.5)), DeepEquals, []string{"far", "mid", "remote"})
	c.Assert(ids(FilterByRating(s.parks, 0)), DeepEquals, []string{"far", "near", "mid", "remote"})
	c.Assert(FilterByRating(s.parks, 5.1), HasLen, 0)
}

func (s *FilterSuite) TestFilterByDistance(c *C) {
	c.Assert(ids(FilterByDistance(s.parks, origin, 5000)), DeepEquals, []string{"near", "mid"})
	c.Assert(ids(FilterByDistance(s.parks, origin, 20000)), DeepEquals, []string{"far", "near", "mid"})
}

func (s *FilterSuite) TestSortByDistance(c *C) {
	c.Assert(ids(SortByDistance(s.parks, origin)), DeepEquals, []string{"near", "mid", "far", "remote"})
}

func (s *FilterSuite) TestSortByRatingIsStableDescending(c *C) {
	c.Assert(ids(SortByRating(s.parks)), DeepEquals, []string{"remote", "far", "mid", "near"})
}

func (s *FilterSuite) TestInputIsNotMutated(c *C) {
	before := ids(s.parks)
	SortByRating(s.parks)
	SortByDistance(s.parks, origin)
	FilterByRating(s.parks, 4)
	c.Assert(ids(s.parks), DeepEquals, before)
}

func (s *FilterSuite) TestApplyWithOriginUsesDefaultRadius(c *C) {
	got := Apply(s.parks, Query{Origin: &origin})
	c.Assert(ids(got), DeepEquals, []string{"near", "mid"})
}

func (s *FilterSuite) TestApplyCombinesRatingAndDistance(c *C) {
	got := Apply(s.parks, Query{Origin: &origin, MaxDistance: 20000, MinRating: 4, Sort: SortRating})
	c.Assert(ids(got), DeepEquals, []string{"far", "mid"})
}

func (s *FilterSuite) TestApplyWithoutOriginKeepsOrder(c *C) {
	got := Apply(s.parks, Query{Sort: SortDistance})
	c.Assert(ids(got), DeepEquals, []string{"far", "near", "mid", "remote"})
}

type ServiceSuite struct {
	store *docstore.MemoryStore
	svc   *Service
}

var _ = Suite(&ServiceSuite{})

func (s *ServiceSuite) SetUpTest(c *C) {
	s.store = docstore.NewMemoryStore(docstore.Options{})
	s.svc = NewService(NewRepository(s.store))
	s.svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
}

func (s *ServiceSuite) TestCreateParkDefaults(c *C) {
	ctx := context.Background()
	p, err := s.svc.Create(ctx, NewPark{Name: "  Ušće Park ", Lat: 44.8166, Lng: 20.4489, CreatedBy: "alice"})
	c.Assert(err, IsNil)

	c.Assert(p.ID, Not(Equals), "")
	c.Assert(p.Name, Equals, "Ušće Park")
	c.Assert(p.Slug, Equals, "usce-park")
	c.Assert(p.Geohash, HasLen, 7)
	c.Assert(p.Rating.Count, Equals, int64(0))
	c.Assert(p.Rating.Average, Equals, 0.0)
	c.Assert(p.Challenges, HasLen, len(DefaultChallengeTypes))
	c.Assert(p.Challenges[PullUps], Equals, ChallengeRecord{})

	stored, err := s.svc.Get(ctx, p.ID)
	c.Assert(err, IsNil)
	c.Assert(stored.ID, Equals, p.ID)
	c.Assert(stored.CreatedAt.Equal(p.CreatedAt), Equals, true)
	c.Assert(stored.Challenges, DeepEquals, p.Challenges)
}

func (s *ServiceSuite) TestCreateRejectsInvalidInput(c *C) {
	ctx := context.Background()
	cases := []NewPark{
		{Name: "   ", Lat: 1, Lng: 1, CreatedBy: "alice"},
		{Name: "Park", Lat: 91, Lng: 1, CreatedBy: "alice"},
		{Name: "Park", Lat: 1, Lng: -181, CreatedBy: "alice"},
		{Name: "Park", Lat: 1, Lng: 1},
	}
	for _, in := range cases {
		_, err := s.svc.Create(ctx, in)
		c.Assert(apperr.CodeOf(err), Equals, apperr.CodeValidation, Commentf("input %+v", in))
	}

	q, err := s.store.List(ctx, docstore.Query{Collection: Collection})
	c.Assert(err, IsNil)
	c.Assert(q.Docs, HasLen, 0)
}

func (s *ServiceSuite) TestGetMissingPark(c *C) {
	_, err := s.svc.Get(context.Background(), "nope")
	c.Assert(apperr.CodeOf(err), Equals, apperr.CodeNotFound)
}

func (s *ServiceSuite) TestQueryAndListByCreator(c *C) {
	ctx := context.Background()
	_, err := s.svc.Create(ctx, NewPark{Name: "A", Lat: 44.8010, Lng: 20.46, CreatedBy: "alice"})
	c.Assert(err, IsNil)
	_, err = s.svc.Create(ctx, NewPark{Name: "B", Lat: 45.5, Lng: 20.46, CreatedBy: "bob"})
	c.Assert(err, IsNil)

	near, err := s.svc.Query(ctx, Query{Origin: &origin})
	c.Assert(err, IsNil)
	c.Assert(near, HasLen, 1)
	c.Assert(near[0].Name, Equals, "A")

	_, err = s.svc.Query(ctx, Query{Sort: "name"})
	c.Assert(apperr.CodeOf(err), Equals, apperr.CodeValidation)

	mine, err := s.svc.ListByCreator(ctx, "bob")
	c.Assert(err, IsNil)
	c.Assert(mine, HasLen, 1)
	c.Assert(mine[0].Name, Equals, "B")
}

func (s *ServiceSuite) TestWatchSeesNewParks(c *C) {
	ctx := context.Background()
	repo := NewRepository(s.store)
	sub, err := repo.Watch(ctx)
	c.Assert(err, IsNil)
	defer sub.Unsubscribe()

	initial := <-sub.C()
	c.Assert(initial.Docs, HasLen, 0)

	_, err = s.svc.Create(ctx, NewPark{Name: "A", Lat: 1, Lng: 1, CreatedBy: "alice"})
	c.Assert(err, IsNil)

	next := <-sub.C()
	parks, err := DecodeAll(next)
	c.Assert(err, IsNil)
	c.Assert(parks, HasLen, 1)
	c.Assert(parks[0].Name, Equals, "A")
}
