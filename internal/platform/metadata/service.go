package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetValue 读取一个键的值，键不存在时返回空字符串。
func GetValue(db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue 创建或更新一个键的值，可以在事务中调用。
func SetValue(db *gorm.DB, key, value string) error {
	meta := Metadata{
		Key:   key,
		Value: value,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error
}

// GetLastSnapshotAt 读取最近一次快照的时间，从未快照时返回零值。
func GetLastSnapshotAt(db *gorm.DB) (time.Time, error) {
	valueStr, err := GetValue(db, LastSnapshotAtKey)
	if err != nil {
		return time.Time{}, err
	}
	if valueStr == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, valueStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析元数据 '%s' 的值: %w", LastSnapshotAtKey, err)
	}
	return t, nil
}

func SetLastSnapshotAt(db *gorm.DB, t time.Time) error {
	return SetValue(db, LastSnapshotAtKey, t.UTC().Format(time.RFC3339Nano))
}

// GetSnapshotParkCount 读取最近一次快照包含的公园数量。
func GetSnapshotParkCount(db *gorm.DB) (int, error) {
	valueStr, err := GetValue(db, SnapshotParkCountKey)
	if err != nil {
		return 0, err
	}
	if valueStr == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("无法解析元数据 '%s' 的值: %w", SnapshotParkCountKey, err)
	}
	return n, nil
}

func SetSnapshotParkCount(db *gorm.DB, n int) error {
	return SetValue(db, SnapshotParkCountKey, strconv.Itoa(n))
}
