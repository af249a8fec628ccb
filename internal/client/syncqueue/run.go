package syncqueue

import (
	"context"

	"github.com/dmitrijs2005/offlinekit/internal/client/netwatch"
)

// Run drains on every offline-to-online transition of source (high priority
// first, then everything) and on every scheduler tick while online. It also
// drains once at start when already online. Run returns when ctx is done.
func (q *Queue) Run(ctx context.Context, source netwatch.Source, sched netwatch.Scheduler) {
	reconnected := make(chan struct{}, 1)
	unsubscribe := source.Subscribe(func(online bool) {
		if !online {
			return
		}
		select {
		case reconnected <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	ticks, stop := sched.Every(q.opts.DrainInterval)
	defer stop()

	if source.Online() {
		q.drainAfterReconnect(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconnected:
			q.drainAfterReconnect(ctx)
		case <-ticks:
			if source.Online() {
				q.logDrain(ctx, "periodic")(q.Drain(ctx))
			}
		}
	}
}

func (q *Queue) drainAfterReconnect(ctx context.Context) {
	q.logDrain(ctx, "reconnect high priority")(q.DrainHighPriorityOnly(ctx))
	if ctx.Err() != nil {
		return
	}
	q.logDrain(ctx, "reconnect")(q.Drain(ctx))
}

func (q *Queue) logDrain(ctx context.Context, trigger string) func(Report, error) {
	return func(r Report, err error) {
		if err != nil {
			q.log.Error(ctx, "drain failed", "trigger", trigger, "error", err.Error())
			return
		}
		if r.Failed > 0 {
			q.log.Warn(ctx, "drain had failures", "trigger", trigger, "failed", r.Failed, "dead_lettered", r.DeadLettered)
		}
	}
}
