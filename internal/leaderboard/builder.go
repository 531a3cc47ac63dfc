package leaderboard

import (
	"context"
	"sort"

	"github.com/SlpAus/workout-parks-backend/internal/park"
	"github.com/SlpAus/workout-parks-backend/internal/record"
)

// UnknownUserName 是既没有资料也没有记录显示名的用户的名字
const UnknownUserName = "Unknown"

// Entry 是排行榜中的一行
type Entry struct {
	Rank       int                          `json:"rank"`
	UserID     string                       `json:"userId"`
	UserName   string                       `json:"userName"`
	BestScores map[park.ChallengeType]int64 `json:"bestScores"`
	TotalScore int64                        `json:"totalScore"`
}

// RecordSource 提供完整的成绩日志，按写入顺序
type RecordSource interface {
	All(ctx context.Context) ([]record.Record, error)
}

// NameSource 提供用户资料中的显示名
type NameSource interface {
	DisplayNames(ctx context.Context) (map[string]string, error)
}

// Builder 每次请求都从日志全量重算排行榜，不持有任何锁
type Builder struct {
	records RecordSource
	names   NameSource
}

func NewBuilder(records RecordSource, names NameSource) *Builder {
	return &Builder{records: records, names: names}
}

func (b *Builder) Build(ctx context.Context) ([]Entry, error) {
	records, err := b.records.All(ctx)
	if err != nil {
		return nil, err
	}
	names, err := b.names.DisplayNames(ctx)
	if err != nil {
		return nil, err
	}
	return Compute(records, names), nil
}

// Compute 按用户分组，总分为每个项目最高成绩之和，缺少的项目按0计。
// 总分相同时按用户ID升序排列，名次为从1开始的位置。
func Compute(records []record.Record, names map[string]string) []Entry {
	byUser := make(map[string]*Entry)
	latestName := make(map[string]string)

	for _, rec := range records {
		// 每个出现在日志中的用户都有一个条目，即使他的记录都不计分
		e, ok := byUser[rec.UserID]
		if !ok {
			e = &Entry{UserID: rec.UserID, BestScores: make(map[park.ChallengeType]int64, len(park.DefaultChallengeTypes))}
			for _, known := range park.DefaultChallengeTypes {
				e.BestScores[known] = 0
			}
			byUser[rec.UserID] = e
		}
		// 日志按写入顺序给出，后面的显示名更新
		if rec.DisplayName != "" {
			latestName[rec.UserID] = rec.DisplayName
		}

		t := park.ChallengeType(rec.ChallengeType)
		if !t.Valid() {
			continue
		}
		if rec.Score > e.BestScores[t] {
			e.BestScores[t] = rec.Score
		}
	}

	entries := make([]Entry, 0, len(byUser))
	for id, e := range byUser {
		for _, score := range e.BestScores {
			e.TotalScore += score
		}
		switch {
		case names[id] != "":
			e.UserName = names[id]
		case latestName[id] != "":
			e.UserName = latestName[id]
		default:
			e.UserName = UnknownUserName
		}
		entries = append(entries, *e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Limit 截取前 n 行，n<=0 表示不截取
func Limit(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
