// Package trailkit 是一个路线推荐工具包（Trail Recommender Kit）。
//
// 设计要点：
// - 内容为底：路线特征标准化后进平坦向量索引，精确近邻检索
// - 策略封闭枚举：content / content_mmr / popularity / ensemble / ensemble_mmr
// - Labels-first: 退化路径与过滤原因全链路打标，支持 explain / 观测
// - 整代替换：索引、scaler、交互矩阵作为一个单元构建与换入
package trailkit

import (
	"github.com/trailteam/trailkit/core"
	"github.com/trailteam/trailkit/pipeline"
)

// 轻量 facade：便于用户直接 import "trailkit" 使用核心抽象。
type Item = core.Item
type Query = core.Query
type Strategy = core.Strategy
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	StrategyContent     = core.StrategyContent
	StrategyContentMMR  = core.StrategyContentMMR
	StrategyPopularity  = core.StrategyPopularity
	StrategyEnsemble    = core.StrategyEnsemble
	StrategyEnsembleMMR = core.StrategyEnsembleMMR

	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
