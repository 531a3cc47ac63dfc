package challenge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/park"
	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/SlpAus/workout-parks-backend/internal/record"
)

// UnknownHolderName 是提交者没有显示名时使用的名字
const UnknownHolderName = "Unknown"

// RecordLog 是成绩记录的追加日志
type RecordLog interface {
	Append(ctx context.Context, rec record.Record) (record.Record, error)
	All(ctx context.Context) ([]record.Record, error)
	ByPark(ctx context.Context, parkID string) ([]record.Record, error)
}

// Submission 是一次成绩提交
type Submission struct {
	ParkID        string
	ChallengeType park.ChallengeType
	UserID        string
	DisplayName   string
	Score         int64
}

// Result 描述一次提交的结果。Updated 为false表示最好成绩未变 (NoOp)。
type Result struct {
	Challenge park.ChallengeRecord `json:"challenge"`
	Updated   bool                 `json:"updated"`
	Record    record.Record        `json:"record"`
}

// Tracker 维护每个公园每个项目的最好成绩，并把每次提交写入日志
type Tracker struct {
	store docstore.Store
	log   RecordLog
	now   func() time.Time
}

func NewTracker(store docstore.Store, log RecordLog) *Tracker {
	return &Tracker{store: store, log: log, now: time.Now}
}

// ParseScore 把原始输入解析为成绩，非整数直接拒绝
func ParseScore(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperr.Validation("成绩必须是整数: %q", raw)
	}
	return v, nil
}

func (s *Submission) normalize() error {
	s.ParkID = strings.TrimSpace(s.ParkID)
	s.UserID = strings.TrimSpace(s.UserID)
	s.DisplayName = strings.TrimSpace(s.DisplayName)
	if s.ParkID == "" {
		return apperr.Validation("公园ID不能为空")
	}
	if s.UserID == "" {
		return apperr.Validation("用户ID不能为空")
	}
	if !s.ChallengeType.Valid() {
		return apperr.Validation("未知的挑战项目: %s", s.ChallengeType)
	}
	if s.Score < 0 {
		return apperr.Validation("成绩不能为负数: %d", s.Score)
	}
	if s.DisplayName == "" {
		s.DisplayName = UnknownHolderName
	}
	return nil
}

// improves 判断新成绩是否应当成为最好成绩: 记录不存在，或严格大于当前最好成绩
func improves(current park.ChallengeRecord, exists bool, score int64) bool {
	return !exists || score > current.BestScore
}

// Submit 记录一次成绩，并在严格超过当前最好成绩时更新保持者
func (t *Tracker) Submit(ctx context.Context, sub Submission) (Result, error) {
	// 1. 校验在任何存储操作之前完成
	if err := sub.normalize(); err != nil {
		return Result{}, err
	}

	// 2. 公园必须存在，否则什么也不写
	snap, err := t.store.Get(ctx, park.Path(sub.ParkID))
	if err != nil {
		return Result{}, fmt.Errorf("无法读取公园 %s: %w", sub.ParkID, err)
	}
	if !snap.Exists {
		return Result{}, apperr.NotFound("公园 %s 不存在", sub.ParkID)
	}

	// 3. 原始记录总是追加，之后的聚合丢失可以从日志重建
	rec, err := t.log.Append(ctx, record.Record{
		UserID:        sub.UserID,
		ParkID:        sub.ParkID,
		ChallengeType: string(sub.ChallengeType),
		Score:         sub.Score,
		DisplayName:   sub.DisplayName,
		Timestamp:     t.now().UTC(),
	})
	if err != nil {
		return Result{}, err
	}

	// 4. 在乐观事务中比较并更新最好成绩
	var result Result
	err = t.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		result = Result{}
		p, err := park.LoadTx(ctx, tx, sub.ParkID)
		if err != nil {
			return err
		}
		current, exists := p.Challenges[sub.ChallengeType]
		if !improves(current, exists, sub.Score) {
			result.Challenge = current
			return nil
		}

		next := park.ChallengeRecord{BestScore: sub.Score, BestHolderName: sub.DisplayName}
		challenges := make(map[park.ChallengeType]park.ChallengeRecord, len(p.Challenges)+1)
		for k, v := range p.Challenges {
			challenges[k] = v
		}
		challenges[sub.ChallengeType] = next
		if err := park.UpdateFieldTx(tx, sub.ParkID, "challenges", challenges); err != nil {
			return err
		}
		result.Challenge = next
		result.Updated = true
		return nil
	})
	result.Record = rec
	if err != nil {
		return result, fmt.Errorf("更新公园 %s 的最好成绩失败: %w", sub.ParkID, err)
	}

	if result.Updated {
		logger.Info("新纪录: %s 在公园 %s 的 %s 项目达到 %d", sub.DisplayName, sub.ParkID, sub.ChallengeType, sub.Score)
	}
	return result, nil
}

// History 返回某个公园的全部成绩记录，按提交顺序
func (t *Tracker) History(ctx context.Context, parkID string) ([]record.Record, error) {
	parkID = strings.TrimSpace(parkID)
	if parkID == "" {
		return nil, apperr.Validation("公园ID不能为空")
	}
	snap, err := t.store.Get(ctx, park.Path(parkID))
	if err != nil {
		return nil, fmt.Errorf("无法读取公园 %s: %w", parkID, err)
	}
	if !snap.Exists {
		return nil, apperr.NotFound("公园 %s 不存在", parkID)
	}
	records, err := t.log.ByPark(ctx, parkID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []record.Record{}
	}
	return records, nil
}

// bestFromLog 从日志计算每个公园每个项目的最高成绩，同分时最先达到的人保持记录
func bestFromLog(records []record.Record) map[string]map[park.ChallengeType]park.ChallengeRecord {
	best := make(map[string]map[park.ChallengeType]park.ChallengeRecord)
	for _, rec := range records {
		t := park.ChallengeType(rec.ChallengeType)
		if !t.Valid() {
			continue
		}
		perPark, ok := best[rec.ParkID]
		if !ok {
			perPark = make(map[park.ChallengeType]park.ChallengeRecord)
			best[rec.ParkID] = perPark
		}
		current, exists := perPark[t]
		if improves(current, exists, rec.Score) {
			name := rec.DisplayName
			if name == "" {
				name = UnknownHolderName
			}
			perPark[t] = park.ChallengeRecord{BestScore: rec.Score, BestHolderName: name}
		}
	}
	return best
}

// Reconcile 用日志修复低于日志最高成绩的公园记录，返回被修复的公园数。
// 它只会提高最好成绩，从不降低。
func (t *Tracker) Reconcile(ctx context.Context) (int, error) {
	records, err := t.log.All(ctx)
	if err != nil {
		return 0, err
	}
	best := bestFromLog(records)

	fixed := 0
	for parkID, fromLog := range best {
		changed := false
		err := t.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			changed = false
			p, err := park.LoadTx(ctx, tx, parkID)
			if err != nil {
				return err
			}
			challenges := make(map[park.ChallengeType]park.ChallengeRecord, len(p.Challenges))
			for k, v := range p.Challenges {
				challenges[k] = v
			}
			for typ, candidate := range fromLog {
				current, exists := challenges[typ]
				if exists && candidate.BestScore <= current.BestScore {
					continue
				}
				challenges[typ] = candidate
				changed = true
			}
			if !changed {
				return nil
			}
			return park.UpdateFieldTx(tx, parkID, "challenges", challenges)
		})
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			logger.Warn("成绩重建: 日志中的公园 %s 在存储中不存在，已跳过", parkID)
			continue
		}
		if err != nil {
			return fixed, fmt.Errorf("重建公园 %s 的最好成绩失败: %w", parkID, err)
		}
		if changed {
			fixed++
		}
	}
	return fixed, nil
}
