package feature

import (
	"math"

	"github.com/trailteam/trailkit/core"
)

// StandardScaler 对特征矩阵做按列标准化：(v - mean) / std。
// 字段导出以便随索引产物一起序列化，重载后无需重新拟合。
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit 在矩阵上拟合每列的均值与标准差。
// std == 0 的列按 1 处理，避免除零（常量列标准化后恒为 0）。
// 空矩阵无法拟合，返回 EMPTY_DATA。
func (s *StandardScaler) Fit(matrix [][]float64) error {
	if len(matrix) == 0 {
		return core.NewDomainError(core.ModuleFeature, core.ErrorCodeEmptyData,
			"feature: cannot fit scaler on zero records")
	}

	dim := len(matrix[0])
	n := float64(len(matrix))

	s.Mean = make([]float64, dim)
	s.Std = make([]float64, dim)

	for _, row := range matrix {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}

	for _, row := range matrix {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}

	return nil
}

// Transform 按已拟合的参数缩放矩阵，返回新矩阵，不修改输入。
func (s *StandardScaler) Transform(matrix [][]float64) [][]float64 {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = scaled
	}
	return out
}

// FitTransform 先拟合再缩放。
func (s *StandardScaler) FitTransform(matrix [][]float64) ([][]float64, error) {
	if err := s.Fit(matrix); err != nil {
		return nil, err
	}
	return s.Transform(matrix), nil
}
