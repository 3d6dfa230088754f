package recommender

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler 按固定间隔整体重建推荐状态，让新增的活动数据定期进入索引。
// 单次重建失败只记日志，旧状态继续服务到下一轮。
type Scheduler struct {
	Recommender *Recommender
	Interval    time.Duration
	Logger      *zap.Logger
}

// Run 阻塞运行调度循环，ctx 取消后返回。间隔未配置（<=0）直接返回。
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		return nil
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	logger.Info("rebuild scheduler started", zap.Duration("interval", s.Interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("rebuild scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.Recommender.Rebuild(ctx); err != nil {
				logger.Error("scheduled rebuild failed", zap.Error(err))
				continue
			}
			logger.Info("scheduled rebuild finished", zap.Duration("took", time.Since(start)))
		}
	}
}
