package core

import (
	"sort"

	"github.com/trailteam/trailkit/pkg/utils"
)

// Item 是推荐链路中的统一承载结构：路线/活动的 ID、分数、特征向量、元信息与标签。
// Vector 是该物品在当前候选池中的特征向量（透传给重排节点使用）；
// Meta 承载路面类型、距离、爬升等展示元数据；Labels 用于解释与回退路径观测。
type Item struct {
	ID     string
	Score  float64
	Vector []float64
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Score:  0,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// GetLabel 获取 Label。
func (it *Item) GetLabel(key string) (utils.Label, bool) {
	if it.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := it.Labels[key]
	return lbl, ok
}

// SortByScore 按分数降序原地排序，同分按 ID 升序保证结果确定。
func SortByScore(items []*Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}
