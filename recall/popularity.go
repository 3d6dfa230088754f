package recall

import (
	"context"

	"github.com/trailteam/trailkit/core"
	"github.com/trailteam/trailkit/feature"
)

// PopularityTable 是全局热门表：每条路线的完成次数做 min-max 归一化到 [0,1]。
// 与其他策略的分数同域，可以直接参与排序或兜底。
type PopularityTable struct {
	scores map[string]float64
}

// BuildPopularity 从交互日志统计完成次数并归一化。
// 所有物品次数相同时全部记 1.0（min-max 分母为零的约定）。
func BuildPopularity(interactions []feature.Interaction) *PopularityTable {
	counts := make(map[string]float64)
	for _, in := range interactions {
		if in.ItemID != "" {
			counts[in.ItemID]++
		}
	}
	return &PopularityTable{scores: normalizeScores(counts)}
}

// PopularityFromStore 从 KV 存储的 zset 读取热门榜（例如由离线作业写入
// 的计数榜单），取前 topN 名后归一化。存储不可用或榜单为空时返回错误，
// 由调用方退化为交互日志统计。
func PopularityFromStore(ctx context.Context, kv core.KeyValueStore, key string, topN int) (*PopularityTable, error) {
	ids, err := kv.ZRange(ctx, key, 0, int64(topN)-1)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeUnavailable,
			"recall: popularity zset read failed: "+err.Error())
	}
	if len(ids) == 0 {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeEmptyData,
			"recall: popularity zset is empty: "+key)
	}

	counts := make(map[string]float64, len(ids))
	for _, id := range ids {
		score, err := kv.ZScore(ctx, key, id)
		if err != nil {
			continue
		}
		counts[id] = score
	}
	if len(counts) == 0 {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeEmptyData,
			"recall: popularity zset has no readable scores: "+key)
	}
	return &PopularityTable{scores: normalizeScores(counts)}, nil
}

// Len 返回榜单条数。
func (p *PopularityTable) Len() int {
	if p == nil {
		return 0
	}
	return len(p.scores)
}

// Score 返回物品的归一化热度，不在榜单中时 ok 为 false。
func (p *PopularityTable) Score(itemID string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	s, ok := p.scores[itemID]
	return s, ok
}

// Top 返回热度不低于其余物品的前 n 个物品（降序，同分按 ID 升序）。
func (p *PopularityTable) Top(n int) []*core.Item {
	if p == nil || n <= 0 {
		return nil
	}
	items := make([]*core.Item, 0, len(p.scores))
	for id, score := range p.scores {
		it := core.NewItem(id)
		it.Score = score
		items = append(items, it)
	}
	core.SortByScore(items)
	if len(items) > n {
		items = items[:n]
	}
	return items
}

// normalizeScores 把任意非负计数 min-max 归一化到 [0,1]。
// 全部相等时统一记 1.0。
func normalizeScores(counts map[string]float64) map[string]float64 {
	if len(counts) == 0 {
		return map[string]float64{}
	}
	var min, max float64
	first := true
	for _, v := range counts {
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make(map[string]float64, len(counts))
	span := max - min
	for id, v := range counts {
		if span == 0 {
			out[id] = 1.0
		} else {
			out[id] = (v - min) / span
		}
	}
	return out
}
