package recommender

import (
	"context"
	"testing"
	"time"

	"github.com/trailteam/trailkit/core"
)

func TestScheduler_NoInterval(t *testing.T) {
	s := &Scheduler{Recommender: newTestRecommender(t), Interval: 0}
	if err := s.Run(context.Background()); err != nil {
		t.Errorf("未配置间隔应直接返回 nil, 实际 %v", err)
	}
}

func TestScheduler_RebuildsAndStops(t *testing.T) {
	rec := newTestRecommender(t)
	s := &Scheduler{Recommender: rec, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("取消后应返回 ctx 错误, 实际 %v", err)
	}

	// 调度期间至少完成过一次重建
	items, err := rec.Recommend(context.Background(),
		&core.Query{ItemID: "r0", K: 2, Strategy: core.StrategyContent})
	if err != nil || len(items) == 0 {
		t.Errorf("调度重建后应可服务: %v/%d 条", err, len(items))
	}
}
