package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// --- Redis Keys ---
const (
	docKeyPrefix        = "doc:"      // String, 值为 envelope JSON
	collectionKeyPrefix = "col:"      // Set, 集合内的文档ID
	channelPrefix       = "docstore:" // Pub/Sub 频道, 每次提交广播一次
)

func docKey(p Path) string                  { return docKeyPrefix + p.String() }
func collectionKey(collection string) string { return collectionKeyPrefix + collection }
func channelName(collection string) string   { return channelPrefix + collection }

// envelope 是文档在Redis中的存储格式，版本号随每次写入递增
type envelope struct {
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// RedisStore 是基于Redis的文档存储实现。
// 事务使用 WATCH 监视读集合的键，在 MULTI/EXEC 中提交写入，EXEC 失败即为冲突。
type RedisStore struct {
	rdb         *redis.Client
	maxAttempts int
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, opts Options) *RedisStore {
	return &RedisStore{rdb: rdb, maxAttempts: opts.maxAttempts()}
}

func decodeEnvelope(p Path, raw []byte) (Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Snapshot{}, fmt.Errorf("文档 %s 的存储格式损坏: %w", p, err)
	}
	return Snapshot{Path: p, Exists: true, Version: env.Version, Data: env.Data}, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readDoc(ctx context.Context, g getter, p Path) (Snapshot, error) {
	raw, err := g.Get(ctx, docKey(p)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{Path: p}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("无法从Redis读取文档 %s: %w", p, err)
	}
	return decodeEnvelope(p, raw)
}

func (r *RedisStore) Get(ctx context.Context, p Path) (Snapshot, error) {
	return readDoc(ctx, r.rdb, p)
}

func (r *RedisStore) Set(ctx context.Context, p Path, data any, opts ...SetOption) error {
	o := resolveSetOptions(opts)
	return r.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if o.merge {
			return tx.Set(p, data, Merge())
		}
		return tx.Set(p, data)
	})
}

func (r *RedisStore) Add(ctx context.Context, collection string, data any) (Path, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Path{}, fmt.Errorf("无法生成文档ID: %w", err)
	}
	p := NewPath(collection, id.String())
	if err := r.Set(ctx, p, data); err != nil {
		return Path{}, err
	}
	return p, nil
}

func (r *RedisStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := r.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{rtx: rtx, reads: make(map[Path]Snapshot)}
			// 1. 执行事务体，读取时逐个 WATCH
			if err := fn(ctx, tx); err != nil {
				return err
			}
			// 2. 在 MULTI/EXEC 中提交
			return tx.commit(ctx)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		logger.Debug("Redis存储: 事务第 %d 次提交冲突，正在重试", attempt)
	}
	return fmt.Errorf("已尝试 %d 次: %w", r.maxAttempts, ErrConflictExceeded)
}

func (r *RedisStore) List(ctx context.Context, q Query) (QuerySnapshot, error) {
	return r.list(ctx, q.Collection)
}

// list 读取一个集合的全部文档
func (r *RedisStore) list(ctx context.Context, collection string) (QuerySnapshot, error) {
	ids, err := r.rdb.SMembers(ctx, collectionKey(collection)).Result()
	if err != nil {
		return QuerySnapshot{}, fmt.Errorf("无法读取集合 %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return QuerySnapshot{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(NewPath(collection, id))
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return QuerySnapshot{}, fmt.Errorf("无法批量读取集合 %s: %w", collection, err)
	}

	docs := make([]Snapshot, 0, len(ids))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		snap, err := decodeEnvelope(NewPath(collection, ids[i]), []byte(s))
		if err != nil {
			return QuerySnapshot{}, err
		}
		docs = append(docs, snap)
	}
	return QuerySnapshot{Docs: docs}, nil
}

func (r *RedisStore) Stream(ctx context.Context, q Query) (*Subscription, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("查询必须指定集合")
	}

	pubsub := r.rdb.Subscribe(ctx, channelName(q.Collection))
	// 等待订阅确认，确认之后的任何提交都会触发一次重新查询
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("无法订阅集合 %s: %w", q.Collection, err)
	}

	loadCtx, cancel := context.WithCancel(context.Background())
	sub := newSubscription(func() {
		cancel()
		pubsub.Close()
	})

	initial, err := r.list(ctx, q.Collection)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	sub.deliver(initial)

	messages := pubsub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			case <-sub.Done():
				return
			case _, ok := <-messages:
				if !ok {
					sub.fail(ErrStreamClosed)
					return
				}
				snap, err := r.list(loadCtx, q.Collection)
				if err != nil {
					if loadCtx.Err() == nil {
						sub.fail(fmt.Errorf("查询流刷新失败: %w", err))
					}
					return
				}
				sub.deliver(snap)
			}
		}
	}()
	return sub, nil
}

// Close 不关闭底层的Redis客户端，客户端由创建者负责
func (r *RedisStore) Close() error {
	return nil
}

type redisTx struct {
	rtx    *redis.Tx
	reads  map[Path]Snapshot
	writes []write
}

func (t *redisTx) Get(ctx context.Context, p Path) (Snapshot, error) {
	if snap, ok := t.reads[p]; ok {
		return snap, nil
	}
	if err := t.rtx.Watch(ctx, docKey(p)).Err(); err != nil {
		return Snapshot{}, fmt.Errorf("无法监视文档 %s: %w", p, err)
	}
	snap, err := readDoc(ctx, t.rtx, p)
	if err != nil {
		return Snapshot{}, err
	}
	t.reads[p] = snap
	return snap, nil
}

func (t *redisTx) Set(p Path, data any, opts ...SetOption) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, write{path: p, data: raw, merge: resolveSetOptions(opts).merge})
	return nil
}

func (t *redisTx) commit(ctx context.Context) error {
	if len(t.writes) == 0 {
		return nil
	}

	// 未读过的写入目标也要先 WATCH，才能得到可靠的版本号和合并基准
	current := make(map[Path]Snapshot, len(t.writes))
	var order []Path
	for _, w := range t.writes {
		if _, ok := current[w.path]; ok {
			continue
		}
		snap, err := t.Get(ctx, w.path)
		if err != nil {
			return err
		}
		current[w.path] = snap
		order = append(order, w.path)
	}

	next := make(map[Path]json.RawMessage, len(order))
	for _, w := range t.writes {
		base, written := next[w.path]
		if !written && current[w.path].Exists {
			base = current[w.path].Data
		}
		data := w.data
		if w.merge && len(base) > 0 {
			merged, err := mergeFields(base, w.data)
			if err != nil {
				return err
			}
			data = merged
		}
		next[w.path] = data
	}

	_, err := t.rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		changed := make(map[string]bool)
		for _, p := range order {
			raw, err := json.Marshal(envelope{Version: current[p].Version + 1, Data: next[p]})
			if err != nil {
				return fmt.Errorf("无法编码文档 %s: %w", p, err)
			}
			pipe.Set(ctx, docKey(p), raw, 0)
			pipe.SAdd(ctx, collectionKey(p.Collection), p.ID)
			changed[p.Collection] = true
		}
		for collection := range changed {
			pipe.Publish(ctx, channelName(collection), collection)
		}
		return nil
	})
	return err
}
