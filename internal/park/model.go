package park

import (
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
	"github.com/SlpAus/workout-parks-backend/pkg/geo"
)

// Collection 是公园文档所在的集合
const Collection = "parks"

// ChallengeType 是挑战项目的标识
type ChallengeType string

const (
	PullUps ChallengeType = "pull-ups"
	PushUps ChallengeType = "push-ups"
	Dips    ChallengeType = "dips"
)

// DefaultChallengeTypes 是每个公园创建时固定拥有的挑战项目
var DefaultChallengeTypes = []ChallengeType{PullUps, PushUps, Dips}

// Valid 判断挑战项目是否属于固定的枚举集合
func (t ChallengeType) Valid() bool {
	for _, known := range DefaultChallengeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ChallengeRecord 是某个挑战项目的最好成绩和保持者
type ChallengeRecord struct {
	BestScore      int64  `json:"bestScore"`
	BestHolderName string `json:"bestHolderName"`
}

// RatingAggregate 是公园评分的运行聚合
// Average 在 Count>0 时等于 PerUser 的平均值，否则为0
type RatingAggregate struct {
	Average float64        `json:"average"`
	Count   int64          `json:"ratingCount"`
	PerUser map[string]int `json:"perUserRating"`
}

// Park 是公园文档，ID 由存储分配，读取时从文档路径填充
type Park struct {
	ID          string                            `json:"id,omitempty"`
	Name        string                            `json:"name"`
	Slug        string                            `json:"slug"`
	Description string                            `json:"description"`
	Location    geo.Coordinates                   `json:"location"`
	Geohash     string                            `json:"geohash"`
	Rating      RatingAggregate                   `json:"rating"`
	CreatedBy   string                            `json:"createdBy"`
	CreatedAt   time.Time                         `json:"createdAt"`
	Challenges  map[ChallengeType]ChallengeRecord `json:"challenges"`
}

// Path 返回公园文档的路径
func Path(id string) docstore.Path {
	return docstore.NewPath(Collection, id)
}

// NewChallengeMap 返回所有默认挑战项目的空记录
func NewChallengeMap() map[ChallengeType]ChallengeRecord {
	m := make(map[ChallengeType]ChallengeRecord, len(DefaultChallengeTypes))
	for _, t := range DefaultChallengeTypes {
		m[t] = ChallengeRecord{}
	}
	return m
}

// Snapshot 是公园聚合在关系数据库中的备份行，由备份模块写入，启动时用于恢复文档存储
type Snapshot struct {
	ParkID     string    `gorm:"primaryKey;type:varchar(64)"`
	Name       string    `gorm:"type:varchar(255)"`
	Geohash    string    `gorm:"index;type:varchar(12)"`
	CreatedBy  string    `gorm:"index;type:varchar(128)"`
	Version    int64     // 备份时文档的版本号
	Payload    string    `gorm:"type:text"` // 完整的公园文档JSON
	SnapshotAt time.Time `gorm:"index"`
}

func (Snapshot) TableName() string {
	return "park_snapshots"
}
