package feature

import "github.com/trailteam/trailkit/core"

// Vectorizer 把原始特征记录转换为可供相似度检索的标准化浮点矩阵。
//
// 保证：输出矩阵第 i 行对应 ids[i]，此后任何环节不得重排行序——
// 向量索引的 idmap 正是建立在这个行序之上的。
type Vectorizer struct{}

// FitTransform 拟合标准化参数并输出 (ids, matrix, scaler)。
// 零条记录返回 EMPTY_DATA（无法在空数据上拟合 scaler）。
func (v *Vectorizer) FitTransform(records []Record) ([]string, [][]float64, *StandardScaler, error) {
	if len(records) == 0 {
		return nil, nil, nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeEmptyData,
			"feature: cannot vectorize zero records")
	}

	ids := make([]string, len(records))
	raw := make([][]float64, len(records))
	for i, r := range records {
		ids[i] = r.ID
		raw[i] = r.vector()
	}

	scaler := &StandardScaler{}
	matrix, err := scaler.FitTransform(raw)
	if err != nil {
		return nil, nil, nil, err
	}

	return ids, matrix, scaler, nil
}

// Transform 用已有 scaler 缩放一批记录（增量查询向量等场景）。
func (v *Vectorizer) Transform(records []Record, scaler *StandardScaler) [][]float64 {
	raw := make([][]float64, len(records))
	for i, r := range records {
		raw[i] = r.vector()
	}
	return scaler.Transform(raw)
}
