package geo

import (
	"fmt"
	"math"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters 是球面模型采用的地球平均半径 (IUGG)。
const EarthRadiusMeters = 6371008.8

// Coordinates 是一个WGS84坐标点，单位为度。
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate 拒绝NaN、无穷大以及超出范围的坐标。
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("坐标包含非法数值: (%v, %v)", c.Lat, c.Lng)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("纬度超出范围: %v", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("经度超出范围: %v", c.Lng)
	}
	return nil
}

func (c Coordinates) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lng)
}

// Distance 返回两点之间的大圆距离，单位为米。
// 结果对称、非负，同一点的距离为0。
func Distance(a, b Coordinates) float64 {
	angle := a.latLng().Distance(b.latLng())
	return angle.Radians() * EarthRadiusMeters
}

// Geohash 返回坐标在给定精度下的geohash编码，用于快照表的空间索引列。
func Geohash(c Coordinates, precision int) string {
	return geohash.EncodeWithPrecision(c.Lat, c.Lng, precision)
}
