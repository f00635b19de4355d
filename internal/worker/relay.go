package worker

import (
	"context"

	"saldo/internal/amqp"
	"saldo/internal/log"
)

// Invalidator drops cached state and wakes local subscribers.
type Invalidator interface {
	Invalidate(scope, collection string)
}

// Relay returns a handler that feeds changes committed by other processes
// into the local adapter. Messages this process published itself are skipped:
// the adapter already notified its subscribers when it wrote them.
func Relay(target Invalidator, origin string, logger *log.Logger) amqp.Handler {
	if logger == nil {
		logger = log.Default(log.ComponentFeed)
	}
	logger = logger.WithComponent(log.ComponentFeed)
	return func(ctx context.Context, msg *amqp.ChangeMessage) error {
		if origin != "" && msg.Origin == origin {
			return nil
		}
		target.Invalidate(msg.Scope, msg.Collection)
		logger.DebugContext(ctx, "Relayed remote change",
			log.FieldScope, msg.Scope, log.FieldCollection, msg.Collection, log.FieldOperation, msg.Op)
		return nil
	}
}
