package geo

import (
	"math"
	"testing"

	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type GeoSuite struct{}

var _ = Suite(&GeoSuite{})

func (s *GeoSuite) TestDistanceZeroForSamePoint(c *C) {
	p := Coordinates{Lat: 44.8125, Lng: 20.4612}
	c.Assert(Distance(p, p), Equals, 0.0)
}

func (s *GeoSuite) TestDistanceIsSymmetric(c *C) {
	a := Coordinates{Lat: 44.8125, Lng: 20.4612}
	b := Coordinates{Lat: 45.2671, Lng: 19.8335}
	c.Assert(Distance(a, b), Equals, Distance(b, a))
	c.Assert(Distance(a, b) > 0, Equals, true)
}

func (s *GeoSuite) TestDistanceOneDegreeOfLatitude(c *C) {
	a := Coordinates{Lat: 0, Lng: 0}
	b := Coordinates{Lat: 1, Lng: 0}
	want := EarthRadiusMeters * math.Pi / 180
	c.Assert(math.Abs(Distance(a, b)-want) < 0.01, Equals, true)
}

func (s *GeoSuite) TestDistanceShortRange(c *C) {
	// 赤道上约0.0018度经度差，约200米
	a := Coordinates{Lat: 0, Lng: 0}
	b := Coordinates{Lat: 0, Lng: 0.0018}
	d := Distance(a, b)
	c.Assert(d > 199 && d < 201, Equals, true, Commentf("distance = %v", d))
}

func (s *GeoSuite) TestValidate(c *C) {
	c.Assert(Coordinates{Lat: 10, Lng: 20}.Validate(), IsNil)
	c.Assert(Coordinates{Lat: 90, Lng: -180}.Validate(), IsNil)
	c.Assert(Coordinates{Lat: 91, Lng: 0}.Validate(), NotNil)
	c.Assert(Coordinates{Lat: 0, Lng: 180.5}.Validate(), NotNil)
	c.Assert(Coordinates{Lat: math.NaN(), Lng: 0}.Validate(), NotNil)
	c.Assert(Coordinates{Lat: 0, Lng: math.Inf(1)}.Validate(), NotNil)
}

func (s *GeoSuite) TestGeohash(c *C) {
	h := Geohash(Coordinates{Lat: 57.64911, Lng: 10.40744}, 11)
	c.Assert(h, Equals, "u4pruydqqvj")
	c.Assert(Geohash(Coordinates{Lat: 57.64911, Lng: 10.40744}, 5), Equals, "u4pru")
}
