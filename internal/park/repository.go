package park

import (
	"context"
	"fmt"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
)

// Repository 封装公园文档在文档存储中的读写
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Store 返回底层的文档存储，供需要事务的模块使用
func (r *Repository) Store() docstore.Store {
	return r.store
}

// Decode 把文档快照解码为公园，ID 取自文档路径
func Decode(snap docstore.Snapshot) (Park, error) {
	var p Park
	if err := snap.DataTo(&p); err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return Park{}, apperr.Wrap(apperr.CodeNotFound, fmt.Sprintf("公园 %s 不存在", snap.Path.ID), err)
		}
		return Park{}, err
	}
	p.ID = snap.Path.ID
	if p.Challenges == nil {
		p.Challenges = map[ChallengeType]ChallengeRecord{}
	}
	if p.Rating.PerUser == nil {
		p.Rating.PerUser = map[string]int{}
	}
	return p, nil
}

// DecodeAll 解码一次查询的全部公园
func DecodeAll(q docstore.QuerySnapshot) ([]Park, error) {
	parks := make([]Park, 0, len(q.Docs))
	for _, doc := range q.Docs {
		p, err := Decode(doc)
		if err != nil {
			return nil, err
		}
		parks = append(parks, p)
	}
	return parks, nil
}

// Create 写入一个新公园并返回带ID的副本
func (r *Repository) Create(ctx context.Context, p Park) (Park, error) {
	p.ID = ""
	path, err := r.store.Add(ctx, Collection, p)
	if err != nil {
		return Park{}, fmt.Errorf("无法创建公园: %w", err)
	}
	p.ID = path.ID
	return p, nil
}

// Put 按ID整体写入公园文档，用于从快照恢复
func (r *Repository) Put(ctx context.Context, p Park) error {
	if p.ID == "" {
		return apperr.Validation("公园ID不能为空")
	}
	doc := p
	doc.ID = ""
	return r.store.Set(ctx, Path(p.ID), doc)
}

func (r *Repository) Get(ctx context.Context, id string) (Park, error) {
	snap, err := r.store.Get(ctx, Path(id))
	if err != nil {
		return Park{}, fmt.Errorf("无法读取公园 %s: %w", id, err)
	}
	return Decode(snap)
}

func (r *Repository) List(ctx context.Context) ([]Park, error) {
	q, err := r.store.List(ctx, docstore.Query{Collection: Collection})
	if err != nil {
		return nil, fmt.Errorf("无法读取公园列表: %w", err)
	}
	return DecodeAll(q)
}

// ListByCreator 返回某个用户创建的所有公园
func (r *Repository) ListByCreator(ctx context.Context, userID string) ([]Park, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var parks []Park
	for _, p := range all {
		if p.CreatedBy == userID {
			parks = append(parks, p)
		}
	}
	return parks, nil
}

// Watch 订阅公园集合的实时变化
func (r *Repository) Watch(ctx context.Context) (*docstore.Subscription, error) {
	return r.store.Stream(ctx, docstore.Query{Collection: Collection})
}

// LoadTx 在事务中读取公园，公园不存在时返回 NotFound 并中止事务
func LoadTx(ctx context.Context, tx docstore.Tx, id string) (Park, error) {
	snap, err := tx.Get(ctx, Path(id))
	if err != nil {
		return Park{}, err
	}
	return Decode(snap)
}

// UpdateFieldTx 在事务中只覆盖公园文档的一个顶层字段
func UpdateFieldTx(tx docstore.Tx, id, field string, value any) error {
	return tx.Set(Path(id), map[string]any{field: value}, docstore.Merge())
}
