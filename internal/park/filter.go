package park

import (
	"sort"

	"github.com/SlpAus/workout-parks-backend/pkg/geo"
)

// DefaultMaxDistance 是有定位时的默认筛选半径，单位为米
const DefaultMaxDistance = 10000.0

// SortOrder 是列表的排序方式
type SortOrder string

const (
	SortNone     SortOrder = ""
	SortDistance SortOrder = "distance"
	SortRating   SortOrder = "rating"
)

// Query 组合了筛选与排序条件
type Query struct {
	Origin      *geo.Coordinates // 用户当前位置，未知时为nil
	MaxDistance float64          // 米，<=0 时使用 DefaultMaxDistance
	MinRating   float64
	Sort        SortOrder
}

// 以下函数都不修改入参，返回新的切片

// FilterByRating 保留平均分不低于 minAverage 的公园
func FilterByRating(parks []Park, minAverage float64) []Park {
	out := make([]Park, 0, len(parks))
	for _, p := range parks {
		if p.Rating.Average >= minAverage {
			out = append(out, p)
		}
	}
	return out
}

// FilterByDistance 保留距离 origin 不超过 maxMeters 的公园
func FilterByDistance(parks []Park, origin geo.Coordinates, maxMeters float64) []Park {
	out := make([]Park, 0, len(parks))
	for _, p := range parks {
		if geo.Distance(origin, p.Location) <= maxMeters {
			out = append(out, p)
		}
	}
	return out
}

// SortByDistance 按到 origin 的距离升序排列，距离相同保持原顺序
func SortByDistance(parks []Park, origin geo.Coordinates) []Park {
	type keyed struct {
		park Park
		dist float64
	}
	items := make([]keyed, len(parks))
	for i, p := range parks {
		items[i] = keyed{park: p, dist: geo.Distance(origin, p.Location)}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].dist < items[j].dist })

	out := make([]Park, len(items))
	for i, it := range items {
		out[i] = it.park
	}
	return out
}

// SortByRating 按平均分降序排列，分数相同保持原顺序
func SortByRating(parks []Park) []Park {
	out := make([]Park, len(parks))
	copy(out, parks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating.Average > out[j].Rating.Average })
	return out
}

// Apply 依次执行评分筛选、距离筛选 (仅在位置已知时) 和排序。
// 位置未知时按距离排序退化为保持原顺序。
func Apply(parks []Park, q Query) []Park {
	out := FilterByRating(parks, q.MinRating)
	if q.Origin != nil {
		maxDistance := q.MaxDistance
		if maxDistance <= 0 {
			maxDistance = DefaultMaxDistance
		}
		out = FilterByDistance(out, *q.Origin, maxDistance)
	}

	switch q.Sort {
	case SortRating:
		return SortByRating(out)
	case SortDistance, SortNone:
		if q.Origin != nil {
			return SortByDistance(out, *q.Origin)
		}
	}
	return out
}
