package rerank

import (
	"context"

	"github.com/trailteam/trailkit/core"
	"github.com/trailteam/trailkit/pipeline"
)

// TopNNode 是 Top-N 截断节点，在排序/重排之后限制返回条数。
// N <= 0 或候选不足 N 条时不截断。
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string { return "rerank.topn" }

func (n *TopNNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TopNNode) Process(
	_ context.Context,
	query *core.Query,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if query != nil && query.K > 0 {
		limit = query.K
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
