package database

import (
	"strings"
)

// IsRetryableError 判断一次数据库写入失败是否值得短暂等待后重试。
// SQLite 在写锁竞争时返回 SQLITE_BUSY / SQLITE_LOCKED，Postgres 在序列化冲突或死锁时返回 40001 / 40P01。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"database is locked",
		"database table is locked",
		"sqlite_busy",
		"40001",
		"40p01",
		"could not serialize access",
		"deadlock detected",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
