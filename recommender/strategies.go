package recommender

import (
	"context"

	"go.uber.org/zap"

	"github.com/trailteam/trailkit/core"
	"github.com/trailteam/trailkit/pkg/utils"
	"github.com/trailteam/trailkit/vector"
)

// score 按策略产出已打分的候选池（不含查询锚点自身）。
//
// 候选池大小：
//   - 含 MMR 的策略按 k×超拉倍数拉取，给多样性选择留空间
//   - 其余策略拉 k 条（检索 k+1 再剔除自身）
//
// 退化规则（记 fallback 标签并打日志，不报错）：
//   - popularity：热度表为空 → content
//   - ensemble / ensemble_mmr：锚点无协同信号 → content，分数与 content 完全一致
func (r *Recommender) score(ctx context.Context, st *state, q *core.Query) ([]*core.Item, error) {
	poolSize := q.K
	if q.Strategy.UsesMMR() {
		poolSize = q.K * r.opts.OverfetchFactor
	}

	items, err := contentCandidates(st.index, q.ItemID, poolSize)
	if err != nil || len(items) == 0 {
		return items, err
	}
	for _, it := range items {
		it.PutLabel("strategy", utils.Label{Value: string(q.Strategy), Source: "recommender"})
	}

	switch q.Strategy {
	case core.StrategyContent, core.StrategyContentMMR:
		return items, nil

	case core.StrategyPopularity:
		if !r.applyPopularity(st, items) {
			r.fallback(q, items, "popularity has no data")
		}
		return items, nil

	case core.StrategyEnsemble, core.StrategyEnsembleMMR:
		if !r.applyEnsemble(ctx, st, q.ItemID, items) {
			r.fallback(q, items, "no collaborative signal for anchor")
		}
		return items, nil
	}

	return nil, core.NewDomainError(core.ModuleRecommender, core.ErrorCodeInvalidInput,
		"recommender: unknown strategy: "+string(q.Strategy))
}

// contentCandidates 以锚点自身向量检索近邻。检索 n+1 条并剔除锚点：
// 锚点必然是自己的最近邻，剔除后仍有 n 条。锚点不在索引中返回空池。
func contentCandidates(idx *vector.FlatIndex, itemID string, n int) ([]*core.Item, error) {
	row, ok := idx.Row(itemID)
	if !ok {
		return nil, nil
	}
	queryVec, err := idx.Reconstruct(row)
	if err != nil {
		return nil, err
	}
	neighbors, err := idx.Search(queryVec, n+1)
	if err != nil {
		return nil, err
	}

	items := make([]*core.Item, 0, n)
	for _, nb := range neighbors {
		if nb.ID == itemID {
			continue
		}
		if len(items) == n {
			break
		}
		vec, err := idx.Reconstruct(nb.Row)
		if err != nil {
			return nil, err
		}
		it := core.NewItem(nb.ID)
		it.Score = nb.Score
		it.Vector = vec
		items = append(items, it)
	}
	return items, nil
}

// applyPopularity 把候选池按热度重排：分数替换为归一化热度，
// 不在热度表中的候选记 0。热度表为空返回 false。
func (r *Recommender) applyPopularity(st *state, items []*core.Item) bool {
	if st.popularity.Len() == 0 {
		return false
	}
	for _, it := range items {
		score, ok := st.popularity.Score(it.ID)
		if !ok {
			score = 0
		}
		it.Score = score
	}
	core.SortByScore(items)
	return true
}

// applyEnsemble 线性融合内容分数与协同分数：
//
//	score = w·content_norm + (1−w)·collab_norm
//
// 两路分数各自在候选池内 min-max 归一化到 [0,1] 后再融合，避免
// 不同量纲（欧氏负距离 vs 余弦交集比）直接相加。锚点无任何协同
// 信号时返回 false，候选池保持纯内容分数不动。
func (r *Recommender) applyEnsemble(ctx context.Context, st *state, itemID string, items []*core.Item) bool {
	collabScores := st.collab.ItemScores(ctx, itemID)
	if len(collabScores) == 0 {
		return false
	}

	content := make([]float64, len(items))
	collab := make([]float64, len(items))
	for i, it := range items {
		content[i] = it.Score
		collab[i] = collabScores[it.ID]
	}
	normalizeInPlace(content)
	normalizeInPlace(collab)

	w := r.opts.EnsembleContentWeight
	for i, it := range items {
		it.Score = w*content[i] + (1-w)*collab[i]
	}
	core.SortByScore(items)
	return true
}

// fallback 把候选池标记为退化到 content 并记日志。
func (r *Recommender) fallback(q *core.Query, items []*core.Item, reason string) {
	r.logger.Warn("strategy degraded to content",
		zap.String("strategy", string(q.Strategy)),
		zap.String("item_id", q.ItemID),
		zap.String("reason", reason))
	for _, it := range items {
		it.PutLabel("fallback", utils.Label{Value: "content", Source: string(q.Strategy)})
	}
}

// normalizeInPlace 在候选池内做 min-max 归一化。
// 退化池（全部同分）统一归零：同分意味着该路信号没有区分度，
// 融合时不应贡献权重。
func normalizeInPlace(scores []float64) {
	if len(scores) == 0 {
		return
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	span := max - min
	for i, s := range scores {
		if span == 0 {
			scores[i] = 0
		} else {
			scores[i] = (s - min) / span
		}
	}
}
