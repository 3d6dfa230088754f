package rerank

import (
	"context"
	"math"

	"github.com/trailteam/trailkit/core"
	"github.com/trailteam/trailkit/pipeline"
)

// MMR（Maximal Marginal Relevance）多样性重排。
//
// 逐个贪心选择使边际效用最大的候选：
//
//	utility(i) = lambda·rel(i) − (1−lambda)·max{ sim(i, s) : s ∈ 已选 }
//
// 其中 rel 是 min-max 归一化到 [0,1] 的相关性分数，sim 是单位化向量的
// 余弦相似度。lambda=1 退化为纯相关性排序，lambda=0 只看多样性。
//
// 约定：
//   - 输出分数是归一化后的相关性，不是边际效用——效用只用于排序，
//     随已选集合变化，作为最终分数会误导调用方
//   - 候选数不超过 topM 时原样返回（没有可淘汰项，无需扰动顺序）
//   - 同效用并列时选 ID 字典序较小者，保证结果确定
type MMR struct {
	// Lambda 相关性权重，[0,1]；越小多样性越强。0.3 是均衡档默认值。
	Lambda float64

	// TopM 产出条数，<=0 时不截断（仅重排）。
	TopM int
}

// Rerank 对候选集执行 MMR 选择，返回按选择顺序排列的前 TopM 个候选下标。
// vectors[i] 与 ids[i]、relevance[i] 平行。
func (m *MMR) Rerank(vectors [][]float64, ids []string, relevance []float64) []int {
	n := len(vectors)
	topM := m.TopM
	if topM <= 0 || topM > n {
		topM = n
	}

	// 没有可淘汰项时原样返回，不扰动调用方已有的排序
	if n <= 1 || (m.TopM > 0 && n <= m.TopM) {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}

	rel := normalizeRelevance(relevance)

	unit := make([][]float64, n)
	for i, v := range vectors {
		unit[i] = unitVector(v)
	}

	lambda := m.Lambda
	selected := make([]int, 0, topM)
	picked := make([]bool, n)

	// maxSim[i] 是候选 i 与当前已选集合的最大相似度，每选中一个只需增量更新
	maxSim := make([]float64, n)
	for i := range maxSim {
		maxSim[i] = math.Inf(-1)
	}

	for len(selected) < topM {
		best := -1
		bestUtility := math.Inf(-1)
		for i := 0; i < n; i++ {
			if picked[i] {
				continue
			}
			utility := rel[i]
			if len(selected) > 0 {
				utility = lambda*rel[i] - (1-lambda)*maxSim[i]
			}
			if utility > bestUtility ||
				(utility == bestUtility && best >= 0 && ids[i] < ids[best]) {
				best = i
				bestUtility = utility
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		selected = append(selected, best)

		for i := 0; i < n; i++ {
			if picked[i] {
				continue
			}
			if sim := cosine(unit[i], unit[best]); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	return selected
}

// MMRNode 把 MMR 包装为管道节点，使用 Item.Vector 与 Item.Score。
// query.Lambda 为 nil 或 NaN 时使用节点默认值。
type MMRNode struct {
	Lambda float64
	TopM   int
}

func (n *MMRNode) Name() string { return "rerank.mmr" }

func (n *MMRNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *MMRNode) Process(
	_ context.Context,
	query *core.Query,
	items []*core.Item,
) ([]*core.Item, error) {
	topM := n.TopM
	if query != nil && query.K > 0 {
		topM = query.K
	}
	if len(items) <= topM || len(items) == 0 {
		return items, nil
	}

	lambda := n.Lambda
	if query != nil && query.Lambda != nil && !math.IsNaN(*query.Lambda) {
		lambda = *query.Lambda
	}

	vectors := make([][]float64, len(items))
	ids := make([]string, len(items))
	relevance := make([]float64, len(items))
	for i, it := range items {
		if len(it.Vector) == 0 {
			// 缺向量无法度量相似度，保守退化为按分截断
			return items[:topM], nil
		}
		vectors[i] = it.Vector
		ids[i] = it.ID
		relevance[i] = it.Score
	}

	mmr := &MMR{Lambda: lambda, TopM: topM}
	rel := normalizeRelevance(relevance)

	out := make([]*core.Item, 0, topM)
	for _, idx := range mmr.Rerank(vectors, ids, relevance) {
		it := items[idx]
		it.Score = rel[idx]
		out = append(out, it)
	}
	return out, nil
}

// IntraListDiversity 度量结果列表的多样性：1 − 平均两两余弦相似度。
// 列表不足两条时返回 0。
func IntraListDiversity(vectors [][]float64) float64 {
	n := len(vectors)
	if n < 2 {
		return 0
	}
	unit := make([][]float64, n)
	for i, v := range vectors {
		unit[i] = unitVector(v)
	}
	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += cosine(unit[i], unit[j])
			pairs++
		}
	}
	return 1 - sum/float64(pairs)
}

// normalizeRelevance 把相关性 min-max 归一化到 [0,1]；全部相等时统一记 1.0。
func normalizeRelevance(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
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
			out[i] = 1.0
		} else {
			out[i] = (s - min) / span
		}
	}
	return out
}

func cosine(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func unitVector(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	out := make([]float64, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
