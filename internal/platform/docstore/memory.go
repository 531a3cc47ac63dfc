package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/google/uuid"
)

type memoryEntry struct {
	data    []byte
	version int64
}

// MemoryStore 是进程内的文档存储实现，版本号是每个文档的写入计数。
type MemoryStore struct {
	mu          sync.Mutex
	docs        map[Path]memoryEntry
	subs        map[string]map[*Subscription]struct{}
	maxAttempts int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		docs:        make(map[Path]memoryEntry),
		subs:        make(map[string]map[*Subscription]struct{}),
		maxAttempts: opts.maxAttempts(),
	}
}

func (m *MemoryStore) snapshotLocked(p Path) Snapshot {
	e, ok := m.docs[p]
	if !ok {
		return Snapshot{Path: p}
	}
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return Snapshot{Path: p, Exists: true, Version: e.version, Data: data}
}

func (m *MemoryStore) Get(ctx context.Context, p Path) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(p), nil
}

func (m *MemoryStore) Set(ctx context.Context, p Path, data any, opts ...SetOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encode(data)
	if err != nil {
		return err
	}
	// 空读集合的提交不会冲突
	_, err = m.commit(nil, []write{{path: p, data: raw, merge: resolveSetOptions(opts).merge}})
	return err
}

func (m *MemoryStore) Add(ctx context.Context, collection string, data any) (Path, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Path{}, fmt.Errorf("无法生成文档ID: %w", err)
	}
	p := NewPath(collection, id.String())
	if err := m.Set(ctx, p, data); err != nil {
		return Path{}, err
	}
	return p, nil
}

func (m *MemoryStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memoryTx{store: m, reads: make(map[Path]int64)}
		if err := fn(ctx, tx); err != nil {
			return err
		}

		ok, err := m.commit(tx.reads, tx.writes)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		logger.Debug("内存存储: 事务第 %d 次提交冲突，正在重试", attempt)
	}
	return fmt.Errorf("已尝试 %d 次: %w", m.maxAttempts, ErrConflictExceeded)
}

// commit 校验读集合的版本，全部一致时原子地应用写入并通知订阅者。
// 返回false表示发生冲突，调用方应重试。
func (m *MemoryStore) commit(reads map[Path]int64, writes []write) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for p, version := range reads {
		if m.docs[p].version != version {
			return false, nil
		}
	}

	// 先算出所有新文档，避免合并失败导致部分写入
	next := make(map[Path]memoryEntry, len(writes))
	order := make([]Path, 0, len(writes))
	for _, w := range writes {
		cur, seen := next[w.path]
		if !seen {
			cur = m.docs[w.path]
			order = append(order, w.path)
		}
		data := []byte(w.data)
		if w.merge && cur.version > 0 {
			merged, err := mergeFields(cur.data, w.data)
			if err != nil {
				return false, err
			}
			data = merged
		}
		next[w.path] = memoryEntry{data: data, version: cur.version + 1}
	}
	if len(order) == 0 {
		return true, nil
	}

	changed := make(map[string]bool)
	for _, p := range order {
		// 同一事务内多次写入同一文档只算一次版本递增
		e := next[p]
		e.version = m.docs[p].version + 1
		m.docs[p] = e
		changed[p.Collection] = true
	}
	for collection := range changed {
		m.publishLocked(collection)
	}
	return true, nil
}

func (m *MemoryStore) queryLocked(collection string) QuerySnapshot {
	var docs []Snapshot
	for p := range m.docs {
		if p.Collection == collection {
			docs = append(docs, m.snapshotLocked(p))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path.ID < docs[j].Path.ID })
	return QuerySnapshot{Docs: docs}
}

func (m *MemoryStore) List(ctx context.Context, q Query) (QuerySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return QuerySnapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryLocked(q.Collection), nil
}

func (m *MemoryStore) publishLocked(collection string) {
	subs := m.subs[collection]
	if len(subs) == 0 {
		return
	}
	snap := m.queryLocked(collection)
	for sub := range subs {
		sub.deliver(snap)
	}
}

func (m *MemoryStore) Stream(ctx context.Context, q Query) (*Subscription, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("查询必须指定集合")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sub *Subscription
	sub = newSubscription(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[q.Collection], sub)
	})

	m.mu.Lock()
	if m.subs[q.Collection] == nil {
		m.subs[q.Collection] = make(map[*Subscription]struct{})
	}
	m.subs[q.Collection][sub] = struct{}{}
	sub.deliver(m.queryLocked(q.Collection))
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.Done():
		}
	}()
	return sub, nil
}

// Close 结束所有订阅
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	var all []*Subscription
	for _, subs := range m.subs {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range all {
		sub.fail(ErrStreamClosed)
	}
	return nil
}

type memoryTx struct {
	store  *MemoryStore
	reads  map[Path]int64
	writes []write
}

func (t *memoryTx) Get(ctx context.Context, p Path) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	t.store.mu.Lock()
	snap := t.store.snapshotLocked(p)
	t.store.mu.Unlock()

	// 同一文档以第一次读取的版本为准，之后的变化会让提交失败
	if _, ok := t.reads[p]; !ok {
		t.reads[p] = snap.Version
	}
	return snap, nil
}

func (t *memoryTx) Set(p Path, data any, opts ...SetOption) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, write{path: p, data: raw, merge: resolveSetOptions(opts).merge})
	return nil
}
