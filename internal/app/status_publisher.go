package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/api"
	redisstorage "github.com/taoyao-code/marine-sim/internal/storage/redis"
)

// PublishStatus 周期性将运行状态写入 Redis，直至 ctx 结束
func PublishStatus(ctx context.Context, store *redisstorage.StatusStore, src api.StatusSource, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			wctx, cancel := context.WithTimeout(ctx, every)
			if err := store.Save(wctx, src.Status()); err != nil {
				log.Debug("status publish failed", zap.String("key", store.Key()), zap.Error(err))
			}
			cancel()
		}
	}
}
