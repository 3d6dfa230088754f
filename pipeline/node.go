package pipeline

import (
	"context"

	"github.com/trailteam/trailkit/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindRecall      Kind = "recall"      // 召回阶段：生成候选集
	KindFilter      Kind = "filter"      // 过滤阶段：剔除已完成路线/不符合约束的候选
	KindReRank      Kind = "rerank"      // 重排阶段：MMR 多样性 / Top-N 截断
	KindPostProcess Kind = "postprocess" // 后处理阶段：元数据补全等最终修饰
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"输入 items -> 输出 items"的形态，方便 Filter 截断、ReRank 重排等操作。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		query *core.Query,
		items []*core.Item,
	) ([]*core.Item, error)
}
