package user

import (
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
	"github.com/SlpAus/workout-parks-backend/pkg/geo"
)

// LocationCollection 是用户最新位置文档所在的集合，每个用户一个文档
const LocationCollection = "user-locations"

// User 定义了用户资料在关系数据库中的持久化模型。
type User struct {
	// ID 由客户端的身份系统提供，本服务不负责认证。
	ID          string `gorm:"primarykey;type:varchar(128)" json:"id"`
	DisplayName string `gorm:"type:varchar(255)" json:"displayName"`
	Email       string `gorm:"type:varchar(255)" json:"email"`
	PhotoURL    string `gorm:"type:varchar(1024)" json:"photoUrl"`
	Points      int64  `json:"points"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// LocationSample 是某个用户最近一次上报的位置，新的样本覆盖旧的
type LocationSample struct {
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName"`
	Location    geo.Coordinates `json:"location"`
	Timestamp   time.Time       `json:"timestamp"`
}

// LocationPath 返回用户位置文档的路径
func LocationPath(userID string) docstore.Path {
	return docstore.NewPath(LocationCollection, userID)
}
