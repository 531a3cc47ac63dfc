// Package docstore 定义了支持乐观事务和实时查询流的文档存储接口，
// 并提供内存与Redis两种实现。
package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
)

var (
	// ErrNotFound 表示请求的文档不存在
	ErrNotFound = apperr.New(apperr.CodeNotFound, "文档不存在")
	// ErrConflictExceeded 表示乐观事务在重试上限内始终无法提交
	ErrConflictExceeded = apperr.New(apperr.CodeConflict, "事务冲突次数超过上限")
	// ErrStreamClosed 表示查询流被后端终止
	ErrStreamClosed = apperr.New(apperr.CodeUnavailable, "查询流已被后端关闭")
)

// DefaultMaxAttempts 是未配置时乐观事务的最大尝试次数
const DefaultMaxAttempts = 5

// Options 是各实现共用的构造参数
type Options struct {
	MaxAttempts int
}

func (o Options) maxAttempts() int {
	if o.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return o.MaxAttempts
}

// Path 唯一标识一个文档: <collection>/<id>
type Path struct {
	Collection string
	ID         string
}

func NewPath(collection, id string) Path {
	return Path{Collection: collection, ID: id}
}

func (p Path) String() string {
	return p.Collection + "/" + p.ID
}

// Snapshot 是某一时刻文档的只读副本
type Snapshot struct {
	Path    Path
	Exists  bool
	Version int64 // 每次写入递增，不存在的文档为0
	Data    json.RawMessage
}

// DataTo 把文档内容解码到 v，文档不存在时返回 ErrNotFound
func (s Snapshot) DataTo(v any) error {
	if !s.Exists {
		return fmt.Errorf("%s: %w", s.Path, ErrNotFound)
	}
	if err := json.Unmarshal(s.Data, v); err != nil {
		return fmt.Errorf("无法解码文档 %s: %w", s.Path, err)
	}
	return nil
}

// QuerySnapshot 是一次查询的完整结果，文档按路径排序
type QuerySnapshot struct {
	Docs []Snapshot
}

// Query 描述一个查询流，目前只支持按集合订阅
type Query struct {
	Collection string
}

type setOptions struct {
	merge bool
}

// SetOption 调整 Set 的写入语义
type SetOption func(*setOptions)

// Merge 让 Set 只覆盖传入对象中出现的顶层字段，保留文档的其他字段
func Merge() SetOption {
	return func(o *setOptions) { o.merge = true }
}

func resolveSetOptions(opts []SetOption) setOptions {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Tx 是事务体内可用的读写句柄。
// 读集合在提交时校验版本，写入在提交前只缓存在事务中。
type Tx interface {
	Get(ctx context.Context, path Path) (Snapshot, error)
	Set(path Path, data any, opts ...SetOption) error
}

// TxFunc 是事务体。它可能因冲突被多次执行，不应在闭包外产生副作用。
// 返回非nil错误会中止事务，且不会重试。
type TxFunc func(ctx context.Context, tx Tx) error

// Store 是文档存储的抽象
type Store interface {
	Get(ctx context.Context, path Path) (Snapshot, error)
	Set(ctx context.Context, path Path, data any, opts ...SetOption) error
	// Add 在集合中创建一个新文档，ID 由存储分配 (UUIDv7)
	Add(ctx context.Context, collection string, data any) (Path, error)
	// List 一次性读取查询的当前结果
	List(ctx context.Context, q Query) (QuerySnapshot, error)
	// RunTransaction 以乐观并发执行事务，冲突时透明重试，超过上限返回 ErrConflictExceeded
	RunTransaction(ctx context.Context, fn TxFunc) error
	// Stream 订阅一个查询，先推送当前结果，之后每次变化推送完整结果
	Stream(ctx context.Context, q Query) (*Subscription, error)
	Close() error
}

// write 是事务中缓存的一次写入
type write struct {
	path  Path
	data  json.RawMessage
	merge bool
}

func encode(data any) (json.RawMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("无法编码文档: %w", err)
	}
	return raw, nil
}

// mergeFields 把 incoming 的顶层字段覆盖到 existing 上，两者都必须是JSON对象
func mergeFields(existing, incoming json.RawMessage) (json.RawMessage, error) {
	base := map[string]json.RawMessage{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &base); err != nil {
			return nil, fmt.Errorf("合并写入失败，已有文档不是对象: %w", err)
		}
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(incoming, &patch); err != nil {
		return nil, fmt.Errorf("合并写入失败，写入内容不是对象: %w", err)
	}
	for k, v := range patch {
		base[k] = v
	}
	return json.Marshal(base)
}
