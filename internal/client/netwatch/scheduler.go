package netwatch

import (
	"sync"
	"time"
)

// Scheduler produces periodic ticks. stop releases the underlying timer.
type Scheduler interface {
	Every(d time.Duration) (ticks <-chan time.Time, stop func())
}

// TickerScheduler is the wall-clock Scheduler.
type TickerScheduler struct{}

func (TickerScheduler) Every(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// ManualScheduler delivers ticks only when Tick is called.
type ManualScheduler struct {
	mu    sync.Mutex
	chans []chan time.Time
}

func (m *ManualScheduler) Every(time.Duration) (<-chan time.Time, func()) {
	ch := make(chan time.Time)
	m.mu.Lock()
	m.chans = append(m.chans, ch)
	m.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, c := range m.chans {
				if c == ch {
					m.chans = append(m.chans[:i], m.chans[i+1:]...)
					break
				}
			}
		})
	}
	return ch, stop
}

// Subscribers is the number of live Every registrations.
func (m *ManualScheduler) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chans)
}

// Tick hands at to every registered consumer, blocking until each one has
// received it.
func (m *ManualScheduler) Tick(at time.Time) {
	m.mu.Lock()
	chans := append([]chan time.Time(nil), m.chans...)
	m.mu.Unlock()
	for _, ch := range chans {
		ch <- at
	}
}
