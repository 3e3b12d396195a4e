package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/matthewbaird/backoffice/internal/logging"
)

// LogConsumer logs every invalidation event.
type LogConsumer struct {
	logger *zap.Logger
}

func NewLogConsumer(logger *zap.Logger) *LogConsumer {
	return &LogConsumer{logger: logging.OrNop(logger)}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt Event) error {
	c.logger.Info("cache invalidated",
		zap.String("query_key", evt.QueryKey),
		zap.String("entity", evt.Entity),
		zap.String("op", string(evt.Op)),
		zap.String("item_id", evt.ItemID),
		zap.String("parent_id", evt.ParentID))
	return nil
}
