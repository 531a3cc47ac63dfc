package rating

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SlpAus/workout-parks-backend/internal/park"
	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Aggregator 维护每个公园的评分聚合
type Aggregator struct {
	store docstore.Store
}

func NewAggregator(store docstore.Store) *Aggregator {
	return &Aggregator{store: store}
}

// ParseRating 把原始输入解析为评分，非整数直接拒绝
func ParseRating(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperr.Validation("评分必须是整数: %q", raw)
	}
	return v, nil
}

func validate(parkID, userID string, rating int) error {
	if strings.TrimSpace(parkID) == "" {
		return apperr.Validation("公园ID不能为空")
	}
	if strings.TrimSpace(userID) == "" {
		return apperr.Validation("用户ID不能为空")
	}
	if rating < MinRating || rating > MaxRating {
		return apperr.Validation("评分必须在 %d 到 %d 之间，当前为 %d", MinRating, MaxRating, rating)
	}
	return nil
}

// Apply 计算一次评分之后的新聚合，不修改入参。
// 同一用户再次评分只替换旧分数，不增加人数。
func Apply(agg park.RatingAggregate, userID string, rating int) park.RatingAggregate {
	// 1. 找到该用户之前的评分
	old, had := agg.PerUser[userID]

	// 2. 增量更新总分和人数
	sum := agg.Average*float64(agg.Count) + float64(rating)
	count := agg.Count
	if had {
		sum -= float64(old)
	} else {
		count++
	}

	// 3. 复制用户评分表，事务重试时不会污染上一次读到的数据
	perUser := make(map[string]int, len(agg.PerUser)+1)
	for k, v := range agg.PerUser {
		perUser[k] = v
	}
	perUser[userID] = rating

	average := 0.0
	if count > 0 {
		average = sum / float64(count)
	}
	return park.RatingAggregate{Average: average, Count: count, PerUser: perUser}
}

// Reconcile 用用户评分表重新精确计算平均分和人数，修正增量计算累积的浮点误差
func Reconcile(agg park.RatingAggregate) (park.RatingAggregate, bool) {
	var sum int64
	for _, v := range agg.PerUser {
		sum += int64(v)
	}
	count := int64(len(agg.PerUser))
	average := 0.0
	if count > 0 {
		average = float64(sum) / float64(count)
	}
	if count == agg.Count && math.Abs(average-agg.Average) <= 1e-9 {
		return agg, false
	}
	return park.RatingAggregate{Average: average, Count: count, PerUser: agg.PerUser}, true
}

// Rate 在乐观事务中为公园评分，返回提交后的聚合
func (a *Aggregator) Rate(ctx context.Context, parkID, userID string, rating int) (park.RatingAggregate, error) {
	// 校验在任何存储操作之前完成
	if err := validate(parkID, userID, rating); err != nil {
		return park.RatingAggregate{}, err
	}

	var result park.RatingAggregate
	err := a.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		p, err := park.LoadTx(ctx, tx, parkID)
		if err != nil {
			return err
		}
		next := Apply(p.Rating, userID, rating)
		if err := park.UpdateFieldTx(tx, parkID, "rating", next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return park.RatingAggregate{}, fmt.Errorf("公园 %s 评分失败: %w", parkID, err)
	}

	logger.Debug("评分: 用户 %s 给公园 %s 打了 %d 分，当前平均 %.2f (%d 人)", userID, parkID, rating, result.Average, result.Count)
	return result, nil
}

// ReconcileAll 检查所有公园的评分聚合，必要时在事务中修正
func (a *Aggregator) ReconcileAll(ctx context.Context) (int, error) {
	q, err := a.store.List(ctx, docstore.Query{Collection: park.Collection})
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, doc := range q.Docs {
		id := doc.Path.ID
		changed := false
		err := a.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			changed = false
			p, err := park.LoadTx(ctx, tx, id)
			if err != nil {
				return err
			}
			next, ok := Reconcile(p.Rating)
			if !ok {
				return nil
			}
			changed = true
			return park.UpdateFieldTx(tx, id, "rating", next)
		})
		if err != nil {
			return fixed, fmt.Errorf("修正公园 %s 的评分失败: %w", id, err)
		}
		if changed {
			fixed++
		}
	}
	return fixed, nil
}
