package vector

import (
	"math"
	"sort"

	"github.com/trailteam/trailkit/core"
)

// FlatIndex 是精确（暴力）最近邻索引：行主序的扁平向量矩阵 + 平行 idmap。
//
// 两条不变式：
//   - idmap[row] 恒等于第 row 行插入时的物品 ID
//   - len(idmap) 恒等于矩阵行数
//
// 矩阵与 idmap 是一个原子单元，只在同一个结构体里一起更新，
// 从不作为两个可分别加锁的字段暴露。索引本身不加锁：
// 并发控制由持有它的编排层（一把互斥锁）负责，重建即整体替换。
//
// 度量语义：
//   - cosine：向量在插入与查询时 L2 归一化，分数 = 内积（即余弦相似度）
//   - euclidean：原始向量，分数 = 负的平方 L2 距离
//
// 两种模式下都满足"分数越大越相近"，上层无需按度量分支。
type FlatIndex struct {
	metric core.Metric
	dim    int
	data   []float64 // 行主序，len == rows*dim
	ids    []string  // idmap
	rows   map[string]int
}

// Neighbor 是一次近邻查询的单条结果。
type Neighbor struct {
	Row   int
	ID    string
	Score float64
}

// NewFlatIndex 创建空索引。
func NewFlatIndex(metric core.Metric, dim int) (*FlatIndex, error) {
	if !metric.Valid() {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput,
			"vector: unknown metric: "+string(metric))
	}
	if dim <= 0 {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput,
			"vector: dimension must be greater than 0")
	}
	return &FlatIndex{
		metric: metric,
		dim:    dim,
		rows:   make(map[string]int),
	}, nil
}

// Build 从整份特征矩阵一次性建索引（当前设计不支持单条增量插入，
// 数据变化通过全量重建生效）。
func Build(metric core.Metric, ids []string, matrix [][]float64) (*FlatIndex, error) {
	if len(matrix) == 0 {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeEmptyData,
			"vector: cannot build index from zero vectors")
	}
	idx, err := NewFlatIndex(metric, len(matrix[0]))
	if err != nil {
		return nil, err
	}
	if err := idx.Add(ids, matrix); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add 批量追加向量，ids 与 matrix 必须等长且维度一致。
func (idx *FlatIndex) Add(ids []string, matrix [][]float64) error {
	if len(ids) != len(matrix) {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput,
			"vector: ids and matrix length mismatch")
	}
	for i, row := range matrix {
		if len(row) != idx.dim {
			return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput,
				"vector: dimension mismatch")
		}
		vec := row
		if idx.metric == core.MetricCosine {
			vec = normalized(row)
		}
		idx.rows[ids[i]] = len(idx.ids)
		idx.ids = append(idx.ids, ids[i])
		idx.data = append(idx.data, vec...)
	}
	return nil
}

// NTotal 返回索引中的向量条数。
func (idx *FlatIndex) NTotal() int { return len(idx.ids) }

// Dim 返回向量维度。
func (idx *FlatIndex) Dim() int { return idx.dim }

// Metric 返回距离度量。
func (idx *FlatIndex) Metric() core.Metric { return idx.metric }

// Row 把物品 ID 解析为行号。
func (idx *FlatIndex) Row(id string) (int, bool) {
	row, ok := idx.rows[id]
	return row, ok
}

// IDAt 返回第 row 行的物品 ID。
func (idx *FlatIndex) IDAt(row int) (string, bool) {
	if row < 0 || row >= len(idx.ids) {
		return "", false
	}
	return idx.ids[row], true
}

// Reconstruct 返回第 row 行存储的向量（cosine 模式下为归一化后的向量）。
// 调用方据此可以"按已有物品"发起查询，无需另存一份向量副本。
func (idx *FlatIndex) Reconstruct(row int) ([]float64, error) {
	if row < 0 || row >= len(idx.ids) {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeNotFound,
			"vector: row out of range")
	}
	out := make([]float64, idx.dim)
	copy(out, idx.data[row*idx.dim:(row+1)*idx.dim])
	return out, nil
}

// Search 返回与查询向量最近的至多 topN 个结果，按分数降序。
// 查询向量与库内向量完全相同（自匹配）是合法结果，由调用方自行剔除。
func (idx *FlatIndex) Search(query []float64, topN int) ([]Neighbor, error) {
	if len(query) != idx.dim {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput,
			"vector: query dimension mismatch")
	}
	if topN <= 0 || idx.NTotal() == 0 {
		return nil, nil
	}

	q := query
	if idx.metric == core.MetricCosine {
		q = normalized(query)
	}

	out := make([]Neighbor, 0, idx.NTotal())
	for row := 0; row < len(idx.ids); row++ {
		vec := idx.data[row*idx.dim : (row+1)*idx.dim]
		var score float64
		if idx.metric == core.MetricCosine {
			score = dot(q, vec)
		} else {
			score = -squaredL2(q, vec)
		}
		out = append(out, Neighbor{Row: row, ID: idx.ids[row], Score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func squaredL2(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// normalized 返回 L2 归一化副本；零向量原样返回，避免除零。
func normalized(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	out := make([]float64, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
