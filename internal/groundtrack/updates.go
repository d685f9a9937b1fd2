package groundtrack

import (
	"sync"

	"github.com/star/groundtrack/internal/kvstore"
	"github.com/star/groundtrack/internal/metrics"
)

// Update describes one successful store write.
type Update struct {
	Operation string
	Replaced  bool // store was cleared before the write
	Fields    []kvstore.Field
}

// hub fans updates out to subscribers. A subscriber that is not keeping up
// misses updates rather than stalling the session.
type hub struct {
	mu   sync.Mutex
	subs map[chan Update]struct{}
}

func (h *hub) subscribe(buf int) (<-chan Update, func()) {
	if buf <= 0 {
		buf = 1
	}
	ch := make(chan Update, buf)

	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[chan Update]struct{})
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

func (h *hub) publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- u:
		default:
			metrics.IncStreamErrors("dropped")
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
