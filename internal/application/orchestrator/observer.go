package orchestrator

import (
	"context"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
	"go.uber.org/zap"
)

// jobObserver turns engine callbacks into logs, metrics and node events
type jobObserver struct {
	manager *Manager
	jobID   string
}

func (o *jobObserver) NodeStarted(ctx context.Context, node string) {
	o.manager.logger.Debug("node started",
		zap.String("job_id", o.jobID),
		zap.String("node", node))
	o.manager.publish(ctx, domain.TopicNodeEvents, domain.EventTypeNodeStarted, o.jobID, node, nil)
}

func (o *jobObserver) NodeFinished(ctx context.Context, node string, duration time.Duration, err error) {
	if err != nil {
		o.manager.metrics.RecordNodeExecuted(node, "failed", duration)
		o.manager.logger.Warn("node failed",
			zap.String("job_id", o.jobID),
			zap.String("node", node),
			zap.Duration("duration", duration),
			zap.Error(err))
		o.manager.publish(ctx, domain.TopicNodeEvents, domain.EventTypeNodeFailed, o.jobID, node,
			map[string]interface{}{"duration_ms": duration.Milliseconds()})
		return
	}

	o.manager.metrics.RecordNodeExecuted(node, "completed", duration)
	o.manager.logger.Debug("node completed",
		zap.String("job_id", o.jobID),
		zap.String("node", node),
		zap.Duration("duration", duration))
	o.manager.publish(ctx, domain.TopicNodeEvents, domain.EventTypeNodeCompleted, o.jobID, node,
		map[string]interface{}{"duration_ms": duration.Milliseconds()})
}

func (o *jobObserver) FanOut(ctx context.Context, node string, width int) {
	o.manager.metrics.RecordFanOut(width)
	o.manager.logger.Debug("fan-out",
		zap.String("job_id", o.jobID),
		zap.String("node", node),
		zap.Int("width", width))
}
