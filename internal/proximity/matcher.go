package proximity

import (
	"fmt"
	"sync"

	"github.com/SlpAus/workout-parks-backend/pkg/geo"
)

// DefaultThresholdMeters 是判定"进入附近"的默认距离
const DefaultThresholdMeters = 200.0

// TargetKind 区分匹配目标是公园还是其他用户
type TargetKind string

const (
	KindPark TargetKind = "park"
	KindUser TargetKind = "user"
)

// Target 是一个可以被接近的对象
type Target struct {
	Kind     TargetKind      `json:"kind"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Location geo.Coordinates `json:"location"`
}

type targetKey struct {
	kind TargetKind
	id   string
}

// Event 表示主体刚刚进入某个目标的附近
type Event struct {
	SubjectID      string  `json:"subjectId"`
	Target         Target  `json:"target"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// Matcher 为一个主体维护它与每个目标之间的远近状态，初始均为远。
// 由远变近时产生一次事件，由近变远时重新布防，不产生事件。
type Matcher struct {
	mu        sync.Mutex
	subjectID string
	threshold float64
	near      map[targetKey]bool
}

func NewMatcher(subjectID string, thresholdMeters float64) *Matcher {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultThresholdMeters
	}
	return &Matcher{
		subjectID: subjectID,
		threshold: thresholdMeters,
		near:      make(map[targetKey]bool),
	}
}

// Observe 用主体的新位置更新所有给出的目标，返回本次新进入附近的目标。
// 本次没有给出的目标保持原状态；主体自己会被跳过。
func (m *Matcher) Observe(subject geo.Coordinates, targets []Target) ([]Event, error) {
	if err := subject.Validate(); err != nil {
		return nil, fmt.Errorf("主体位置无效: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var events []Event
	for _, t := range targets {
		if t.Kind == KindUser && t.ID == m.subjectID {
			continue
		}
		if t.Location.Validate() != nil {
			continue
		}
		key := targetKey{kind: t.Kind, id: t.ID}
		d := geo.Distance(subject, t.Location)
		switch {
		case d < m.threshold && !m.near[key]:
			m.near[key] = true
			events = append(events, Event{SubjectID: m.subjectID, Target: t, DistanceMeters: d})
		case d >= m.threshold && m.near[key]:
			delete(m.near, key)
		}
	}
	return events, nil
}
