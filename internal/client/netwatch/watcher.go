package netwatch

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/logging"
)

// Source is a reachability signal.
type Source interface {
	Online() bool
	// Subscribe registers fn for transitions. fn runs synchronously on the
	// notifying goroutine and must not block. The returned func unsubscribes.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Prober checks reachability once; nil means reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// DefaultProbeTimeout bounds a single reachability probe.
const DefaultProbeTimeout = 3 * time.Second

// Watcher tracks whether the remote API is reachable and notifies
// subscribers on every change. It implements Source.
type Watcher struct {
	prober  Prober
	timeout time.Duration
	log     logging.Logger

	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(bool)
}

// NewWatcher returns a watcher that starts in the offline state.
func NewWatcher(p Prober, log logging.Logger) *Watcher {
	return &Watcher{
		prober:  p,
		timeout: DefaultProbeTimeout,
		log:     logging.OrNop(log).With("component", "netwatch"),
		subs:    make(map[int]func(bool)),
	}
}

// NewManual returns a watcher without a prober whose state only changes via Set.
func NewManual(online bool) *Watcher {
	w := NewWatcher(nil, nil)
	w.online = online
	return w
}

func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Subscribe registers fn for state changes and returns its unsubscribe func.
// fn runs synchronously on the goroutine that changed the state.
func (w *Watcher) Subscribe(fn func(online bool)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

// Set records the reachability state and notifies subscribers if it changed.
func (w *Watcher) Set(online bool) {
	w.mu.Lock()
	if w.online == online {
		w.mu.Unlock()
		return
	}
	w.online = online
	fns := make([]func(bool), 0, len(w.subs))
	for _, fn := range w.subs {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	if online {
		w.log.Info(context.Background(), "switched to online mode")
	} else {
		w.log.Info(context.Background(), "switched to offline mode")
	}
	for _, fn := range fns {
		fn(online)
	}
}

// Check probes once and updates the state. Without a prober the current
// state is returned unchanged.
func (w *Watcher) Check(ctx context.Context) bool {
	if w.prober == nil {
		return w.Online()
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.prober.Probe(ctx)
	cancel()

	if err != nil {
		w.log.Debug(ctx, "probe failed", "error", err.Error())
	}
	w.Set(err == nil)
	return err == nil
}

// Run checks immediately and then on every tick until ctx is done.
func (w *Watcher) Run(ctx context.Context, sched Scheduler, interval time.Duration) {
	ticks, stop := sched.Every(interval)
	defer stop()

	w.Check(ctx)
	for {
		select {
		case <-ticks:
			w.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
