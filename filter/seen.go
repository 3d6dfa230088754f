package filter

import (
	"context"

	"github.com/trailteam/trailkit/core"
	"github.com/trailteam/trailkit/pkg/conv"
)

// SeenFilter 剔除用户已完成过的路线。
//
// 数据源二选一（都配置时先查内存）：
//   - Seen：进程内的 userID → 已完成集合（由交互矩阵构建时填充）
//   - Store：KV 存储里的已完成集合，key 为 {KeyPrefix}:{userID} 的 zset
//
// query.UserID 为空时不过滤（匿名请求看全量候选）；
// Params["include_seen"] 为 true 时按请求豁免过滤（"再跑一次"场景）。
type SeenFilter struct {
	Seen map[string]map[string]bool

	Store     core.KeyValueStore
	KeyPrefix string
}

func (f *SeenFilter) Name() string { return "filter.seen" }

func (f *SeenFilter) ShouldFilter(
	ctx context.Context,
	query *core.Query,
	item *core.Item,
) (bool, error) {
	if item == nil || query == nil || query.UserID == "" {
		return false, nil
	}
	if include, ok := conv.ToBool(query.Params["include_seen"]); ok && include {
		return false, nil
	}

	if set, ok := f.Seen[query.UserID]; ok && set[item.ID] {
		return true, nil
	}

	if f.Store != nil {
		prefix := f.KeyPrefix
		if prefix == "" {
			prefix = "user:seen"
		}
		// 成员存在即视为已完成；分数承载完成时间戳，这里不关心取值
		if _, err := f.Store.ZScore(ctx, prefix+":"+query.UserID, item.ID); err == nil {
			return true, nil
		}
	}

	return false, nil
}
