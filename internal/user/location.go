package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
)

// LocationStore 保存每个用户最新的位置样本，供邻近匹配订阅
type LocationStore struct {
	store docstore.Store
	now   func() time.Time
}

func NewLocationStore(store docstore.Store) *LocationStore {
	return &LocationStore{store: store, now: time.Now}
}

// Update 用合并写入覆盖用户的位置样本
func (l *LocationStore) Update(ctx context.Context, sample LocationSample) (LocationSample, error) {
	sample.UserID = strings.TrimSpace(sample.UserID)
	if sample.UserID == "" {
		return LocationSample{}, apperr.Validation("用户ID不能为空")
	}
	if err := sample.Location.Validate(); err != nil {
		return LocationSample{}, apperr.Wrap(apperr.CodeValidation, "位置无效", err)
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = l.now().UTC()
	}
	if err := l.store.Set(ctx, LocationPath(sample.UserID), sample, docstore.Merge()); err != nil {
		return LocationSample{}, fmt.Errorf("无法保存用户 %s 的位置: %w", sample.UserID, err)
	}
	return sample, nil
}

func (l *LocationStore) Get(ctx context.Context, userID string) (LocationSample, error) {
	snap, err := l.store.Get(ctx, LocationPath(userID))
	if err != nil {
		return LocationSample{}, fmt.Errorf("无法读取用户 %s 的位置: %w", userID, err)
	}
	if !snap.Exists {
		return LocationSample{}, apperr.NotFound("用户 %s 没有位置记录", userID)
	}
	var sample LocationSample
	if err := snap.DataTo(&sample); err != nil {
		return LocationSample{}, err
	}
	return sample, nil
}

// Watch 订阅所有用户位置的变化
func (l *LocationStore) Watch(ctx context.Context) (*docstore.Subscription, error) {
	return l.store.Stream(ctx, docstore.Query{Collection: LocationCollection})
}

// DecodeSamples 解码一次位置集合查询，用户ID取自文档路径
func DecodeSamples(q docstore.QuerySnapshot) ([]LocationSample, error) {
	samples := make([]LocationSample, 0, len(q.Docs))
	for _, doc := range q.Docs {
		var s LocationSample
		if err := doc.DataTo(&s); err != nil {
			return nil, err
		}
		s.UserID = doc.Path.ID
		samples = append(samples, s)
	}
	return samples, nil
}
