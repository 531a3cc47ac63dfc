package metadata

// --- SQLite Keys ---
// 以下常量是 metadata 表 key 列的取值。
const (
	// LastSnapshotAtKey 存储最近一次成功的公园快照的时间 (RFC3339Nano, UTC)。
	LastSnapshotAtKey = "last_snapshot_at"

	// SnapshotParkCountKey 存储最近一次快照包含的公园数量。
	SnapshotParkCountKey = "snapshot_park_count"
)
