package recall

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/trailteam/trailkit/core"
)

// CollabRecall 带缓存的 Item-CF 召回：相似度计算是 O(items × users) 的
// 全量扫描，结果按 TTL 缓存在 Store 里（内存或 Redis），过期后重算。
//
// 交互数据变化缓慢且重建是整体替换，时间过期足够，不做事件失效。
type CollabRecall struct {
	Matrix *InteractionMatrix
	Cache  core.Store

	// TTLSeconds 缓存有效期，<=0 时取默认 30 分钟
	TTLSeconds int

	// KeyPrefix 缓存 key 前缀，区分不同代的矩阵
	KeyPrefix string

	Logger *zap.Logger
}

const defaultCollabTTL = 30 * 60

// ItemScores 返回查询物品的协同相似度表，优先走缓存。
// 缓存层故障只记日志并退化为直接计算，不影响结果正确性。
func (c *CollabRecall) ItemScores(ctx context.Context, itemID string) map[string]float64 {
	key := c.cacheKey(itemID)

	if c.Cache != nil {
		if raw, err := c.Cache.Get(ctx, key); err == nil {
			var scores map[string]float64
			if err := json.Unmarshal(raw, &scores); err == nil {
				return scores
			}
		} else if !core.IsStoreNotFound(err) && c.Logger != nil {
			c.Logger.Warn("collab cache get failed, computing directly",
				zap.String("item_id", itemID), zap.Error(err))
		}
	}

	scores := c.Matrix.ItemScores(itemID)

	if c.Cache != nil {
		ttl := c.TTLSeconds
		if ttl <= 0 {
			ttl = defaultCollabTTL
		}
		if raw, err := json.Marshal(scores); err == nil {
			if err := c.Cache.Set(ctx, key, raw, ttl); err != nil && c.Logger != nil {
				c.Logger.Warn("collab cache set failed",
					zap.String("item_id", itemID), zap.Error(err))
			}
		}
	}

	return scores
}

func (c *CollabRecall) cacheKey(itemID string) string {
	prefix := c.KeyPrefix
	if prefix == "" {
		prefix = "collab"
	}
	return prefix + ":scores:" + itemID
}
