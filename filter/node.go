package filter

import (
	"context"

	"github.com/trailteam/trailkit/core"
	"github.com/trailteam/trailkit/pipeline"
	"github.com/trailteam/trailkit/pkg/utils"
)

// FilterNode 组合多个过滤器：任一过滤器命中即剔除该候选。
// 单个过滤器出错不中断流程（宁可多推一条，不让过滤层故障拖垮整次请求）。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string { return "filter.node" }

func (n *FilterNode) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *FilterNode) Process(
	ctx context.Context,
	query *core.Query,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		reason := ""
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, query, item)
			if err != nil {
				continue
			}
			if ok {
				reason = f.Name()
				break
			}
		}

		if reason != "" {
			item.PutLabel("filtered", utils.Label{Value: "true", Source: reason})
			continue
		}
		out = append(out, item)
	}

	return out, nil
}
