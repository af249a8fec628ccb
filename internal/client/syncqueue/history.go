package syncqueue

import (
	"sync"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
)

// history is a fixed-size ring of the most recent replay attempts.
type history struct {
	mu   sync.Mutex
	buf  []models.SyncResult
	next int
	full bool
}

func newHistory(size int) *history {
	return &history{buf: make([]models.SyncResult, size)}
}

func (h *history) add(r models.SyncResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = r
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

// recent returns the retained results, oldest first.
func (h *history) recent() []models.SyncResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		return append([]models.SyncResult(nil), h.buf[:h.next]...)
	}
	out := make([]models.SyncResult, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	return append(out, h.buf[:h.next]...)
}

// rate returns attempts, successes and the success ratio (1 with no history).
func (h *history) rate() (int, int, float64) {
	rs := h.recent()
	if len(rs) == 0 {
		return 0, 0, 1
	}
	ok := 0
	for _, r := range rs {
		if r.Success {
			ok++
		}
	}
	return len(rs), ok, float64(ok) / float64(len(rs))
}
