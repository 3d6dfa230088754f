package core

// Strategy 是推荐打分策略的封闭枚举。
//
// 编排层对 Strategy 做穷举 switch，新增/删除策略是编译期可见的改动，
// 不再用裸字符串在运行时分发。
type Strategy string

const (
	// StrategyContent 纯内容相似度：候选池按原始相似度取 Top-K。
	StrategyContent Strategy = "content"

	// StrategyContentMMR 内容相似度 + MMR 多样性重排。
	StrategyContentMMR Strategy = "content_mmr"

	// StrategyPopularity 按热度重排候选池（冷启动兜底）；无热度数据时退化为 content。
	StrategyPopularity Strategy = "popularity"

	// StrategyEnsemble 内容分数与协同分数线性融合；无协同信号时退化为 content。
	StrategyEnsemble Strategy = "ensemble"

	// StrategyEnsembleMMR 先融合打分，再做 MMR 多样性重排。
	StrategyEnsembleMMR Strategy = "ensemble_mmr"
)

// Strategies 返回全部合法策略（用于参数校验与文档）。
func Strategies() []Strategy {
	return []Strategy{
		StrategyContent,
		StrategyContentMMR,
		StrategyPopularity,
		StrategyEnsemble,
		StrategyEnsembleMMR,
	}
}

// Valid 判断是否为合法策略。
func (s Strategy) Valid() bool {
	switch s {
	case StrategyContent, StrategyContentMMR, StrategyPopularity,
		StrategyEnsemble, StrategyEnsembleMMR:
		return true
	default:
		return false
	}
}

// UsesMMR 判断该策略是否包含 MMR 重排阶段。
// 包含 MMR 的策略需要按 k×10 超量拉取候选，给多样性选择留出空间。
func (s Strategy) UsesMMR() bool {
	return s == StrategyContentMMR || s == StrategyEnsembleMMR
}

// ParseStrategy 将外部输入解析为 Strategy，非法输入返回 INVALID_INPUT。
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(s)
	if !st.Valid() {
		return "", NewDomainError(ModuleRecommender, ErrorCodeInvalidInput,
			"recommender: unknown strategy: "+s)
	}
	return st, nil
}

// Metric 是向量索引的距离度量类型。
type Metric string

const (
	// MetricCosine 余弦相似度：入库前 L2 归一化，内积检索，分数越大越相似。
	MetricCosine Metric = "cosine"

	// MetricEuclidean 欧氏距离：原始向量入库，分数取负的平方 L2 距离，
	// 保证两种度量下都是"分数越大越好"。
	MetricEuclidean Metric = "euclidean"
)

// Valid 判断是否为合法度量。
func (m Metric) Valid() bool {
	return m == MetricCosine || m == MetricEuclidean
}
