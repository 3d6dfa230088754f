package pipeline

import (
	"context"

	"github.com/trailteam/trailkit/core"
)

// Pipeline 把候选集后处理拆成可组合的 Node 链（Filter → ReRank → PostProcess）。
// 编排层在策略打分之后用它执行已见过滤、表达式过滤与 Top-N 截断。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	query *core.Query,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, query, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
