package database

import (
	"fmt"
	"log"
	"os"

	"github.com/SlpAus/workout-parks-backend/internal/platform/config"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MemoryPath 作为 SQLite 路径时，打开一个仅当前连接池可见的内存数据库
const MemoryPath = ":memory:"

// Open 根据配置打开关系数据库连接 (SQLite 或 Postgres)
func Open(cfg config.DatabaseConfig, verbose bool) (*gorm.DB, error) {
	// GORM日志配置
	level := gormlogger.Warn
	if !verbose {
		level = gormlogger.Silent
	}
	newLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             0,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	gormCfg := &gorm.Config{Logger: newLogger}

	var dialector gorm.Dialector
	memory := false
	switch cfg.Driver {
	case config.DatabaseDriverSqlite:
		path := cfg.Sqlite.Path
		if path == MemoryPath {
			// 每个连接池使用独立命名的共享缓存库，避免测试之间互相污染
			path = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
			memory = true
		}
		dialector = sqlite.Open(path)
	case config.DatabaseDriverPostgres:
		dialector = postgres.Open(cfg.Postgres.DSN)
	default:
		return nil, fmt.Errorf("未知的数据库驱动: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if cfg.Driver == config.DatabaseDriverSqlite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("获取底层数据库连接失败: %w", err)
		}
		// SQLite 只允许单写者，串行化连接以避免 "database is locked"
		sqlDB.SetMaxOpenConns(1)
		if memory {
			// 内存库在最后一个连接关闭时被销毁
			sqlDB.SetConnMaxIdleTime(0)
			sqlDB.SetConnMaxLifetime(0)
		}
	}

	logger.Success("数据库连接成功！(%s)", cfg.Driver)
	return db, nil
}

// Close 关闭数据库连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
