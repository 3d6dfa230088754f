package feature

import "context"

// FeatureColumns 是参与向量化的四个规范数值列，顺序即向量维度顺序。
// 源数据缺失的列按 0.0 处理。
var FeatureColumns = []string{"distance_m", "duration_s", "elevation_gain_m", "hr_avg"}

// Record 是一条路线/活动的原始特征记录。
type Record struct {
	ID             string
	DistanceM      float64
	DurationS      float64
	ElevationGainM float64
	HRAvg          float64

	// Meta 承载非向量化的展示元数据：surface、distance_km、elevation_m、
	// difficulty、loop 等，原样透传到推荐结果。
	Meta map[string]any
}

// vector 按 FeatureColumns 顺序展开为原始（未缩放）向量。
func (r Record) vector() []float64 {
	return []float64{r.DistanceM, r.DurationS, r.ElevationGainM, r.HRAvg}
}

// Interaction 是一条用户-物品历史交互（"这个用户完成过这条路线"）。
type Interaction struct {
	UserID string
	ItemID string
}

// Dataset 是一次数据加载的完整产出：去重后的物品特征记录 + 历史交互日志。
// Records 供内容侧（索引）使用，Interactions 供协同侧（交互矩阵、热度表）使用。
type Dataset struct {
	Records      []Record
	Interactions []Interaction
}

// RecordSource 是源数据的抽象：CSV 文件、Feast 在线特征库等。
// 全量重建索引时调用 Load 拉取整份数据集。
type RecordSource interface {
	Name() string
	Load(ctx context.Context) (*Dataset, error)
}
