package recommender

import (
	"context"

	"github.com/trailteam/trailkit/core"
	"github.com/trailteam/trailkit/feature"
	"github.com/trailteam/trailkit/pipeline"
)

// EnrichNode 补全展示元数据（路面、距离、爬升等）。打分阶段只携带
// ID 与向量，元数据统一在这里回填；编排层把它放在过滤之前执行，
// 让表达式过滤可以引用 meta 字段。
type EnrichNode struct {
	Records map[string]feature.Record
}

func (n *EnrichNode) Name() string { return "recommender.enrich" }

func (n *EnrichNode) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *EnrichNode) Process(
	_ context.Context,
	_ *core.Query,
	items []*core.Item,
) ([]*core.Item, error) {
	for _, it := range items {
		rec, ok := n.Records[it.ID]
		if !ok {
			continue
		}
		if it.Meta == nil {
			it.Meta = make(map[string]any, len(rec.Meta))
		}
		for k, v := range rec.Meta {
			if _, exists := it.Meta[k]; !exists {
				it.Meta[k] = v
			}
		}
	}
	return items, nil
}
