package recall

import (
	"math"

	"github.com/trailteam/trailkit/feature"
)

// InteractionMatrix 是用户×物品的二值交互矩阵（Item-CF 的数据底座）。
//
// 核心思想："被同一批用户完成过的路线，相互相似"——把每个物品看作
// 用户空间里的一个二值向量，物品相似度即两列的余弦相似度。
//
// 构建一次后在单个推荐器生命周期内只读；数据更新通过整体重建生效，
// 与向量索引共用同一把重建锁。
type InteractionMatrix struct {
	userRow map[string]int
	itemCol map[string]int
	itemIDs []string // col -> item ID

	// data 列主序的二值矩阵：data[col*numUsers + row]
	data     []uint8
	numUsers int

	// colCount[col] 是该列的非零元个数（即完成过该路线的用户数），
	// 二值向量的余弦相似度只依赖交集大小与两列的非零计数
	colCount []int
}

// BuildInteractionMatrix 从历史交互日志构建矩阵。
// 重复交互（同一用户多次完成同一路线）只记一次。
func BuildInteractionMatrix(interactions []feature.Interaction) *InteractionMatrix {
	m := &InteractionMatrix{
		userRow: make(map[string]int),
		itemCol: make(map[string]int),
	}

	for _, in := range interactions {
		if in.UserID == "" || in.ItemID == "" {
			continue
		}
		if _, ok := m.userRow[in.UserID]; !ok {
			m.userRow[in.UserID] = len(m.userRow)
		}
		if _, ok := m.itemCol[in.ItemID]; !ok {
			m.itemCol[in.ItemID] = len(m.itemCol)
			m.itemIDs = append(m.itemIDs, in.ItemID)
		}
	}

	m.numUsers = len(m.userRow)
	m.data = make([]uint8, m.numUsers*len(m.itemIDs))
	m.colCount = make([]int, len(m.itemIDs))

	for _, in := range interactions {
		row, ok := m.userRow[in.UserID]
		if !ok {
			continue
		}
		col := m.itemCol[in.ItemID]
		cell := col*m.numUsers + row
		if m.data[cell] == 0 {
			m.data[cell] = 1
			m.colCount[col]++
		}
	}

	return m
}

// Users 返回用户数（矩阵行数）。
func (m *InteractionMatrix) Users() int { return m.numUsers }

// Items 返回物品数（矩阵列数）。
func (m *InteractionMatrix) Items() int { return len(m.itemIDs) }

// HasItem 判断物品是否出现在交互历史中。
func (m *InteractionMatrix) HasItem(itemID string) bool {
	_, ok := m.itemCol[itemID]
	return ok
}

// UserItems 返回某用户完成过的物品集合（已见过滤的数据来源）。
func (m *InteractionMatrix) UserItems(userID string) map[string]bool {
	row, ok := m.userRow[userID]
	if !ok {
		return nil
	}
	out := make(map[string]bool)
	for col, id := range m.itemIDs {
		if m.data[col*m.numUsers+row] == 1 {
			out[id] = true
		}
	}
	return out
}

// ItemScores 计算查询物品与其余全部物品的列向量余弦相似度。
//
// 无人完成过该路线（或物品不在历史中）时返回空 map——这是合法的
// "无协同信号"结果，调用方据此退化为纯内容策略，不是错误。
//
// 复杂度 O(items × users)，调用方应按 TTL 缓存结果（交互矩阵变化缓慢，
// 时间过期足够，无需事件失效）。
func (m *InteractionMatrix) ItemScores(itemID string) map[string]float64 {
	qCol, ok := m.itemCol[itemID]
	if !ok || m.colCount[qCol] == 0 {
		return map[string]float64{}
	}

	qStart := qCol * m.numUsers
	out := make(map[string]float64)

	for col := range m.itemIDs {
		if col == qCol || m.colCount[col] == 0 {
			continue
		}
		cStart := col * m.numUsers
		inter := 0
		for row := 0; row < m.numUsers; row++ {
			if m.data[qStart+row] == 1 && m.data[cStart+row] == 1 {
				inter++
			}
		}
		if inter == 0 {
			continue
		}
		out[m.itemIDs[col]] = float64(inter) /
			math.Sqrt(float64(m.colCount[qCol])*float64(m.colCount[col]))
	}

	return out
}
