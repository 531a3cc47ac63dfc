package record

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrImmutable 表示试图修改或删除一条已写入的成绩记录
var ErrImmutable = errors.New("成绩记录只允许追加，不能修改或删除")

// Record 是一次成绩提交的原始事件，写入后不可变
type Record struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	UserID        string    `gorm:"index;not null;type:varchar(128)" json:"userId"`
	ParkID        string    `gorm:"index;not null;type:varchar(64)" json:"parkId"`
	ChallengeType string    `gorm:"index;not null;type:varchar(32)" json:"challengeType"`
	Score         int64     `gorm:"not null" json:"score"`
	DisplayName   string    `gorm:"type:varchar(255)" json:"displayName"` // 提交时的显示名，用于重建保持者
	Timestamp     time.Time `gorm:"index;not null" json:"timestamp"`
}

func (Record) TableName() string {
	return "records"
}

// BeforeUpdate 拒绝一切更新
func (r *Record) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutable
}

// BeforeDelete 拒绝一切删除
func (r *Record) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutable
}
