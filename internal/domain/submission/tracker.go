package submission

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultMaxTracked = 100_000

// playerState is the per-player memory of the pipeline.
type playerState struct {
	id      string
	limiter *rate.Limiter
	// level is the last accepted level. Events reach the ledger
	// asynchronously, so it runs ahead of LatestEvent.
	level    float64
	hasLevel bool
}

// tracker keeps playerState for the most recently active players and evicts
// the least recently used one when full. An evicted player starts with a
// fresh limiter and reads its level back from the ledger.
type tracker struct {
	mu      sync.Mutex
	players map[string]*list.Element
	order   *list.List
	max     int
	every   rate.Limit
	burst   int
}

func newTracker(maxTracked, perMinute int) *tracker {
	if maxTracked <= 0 {
		maxTracked = defaultMaxTracked
	}
	return &tracker{
		players: make(map[string]*list.Element),
		order:   list.New(),
		max:     maxTracked,
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
	}
}

// get returns the state of id, creating it if needed. Callers hold t.mu.
func (t *tracker) get(id string) *playerState {
	if el, ok := t.players[id]; ok {
		t.order.MoveToBack(el)
		return el.Value.(*playerState)
	}
	if t.order.Len() >= t.max {
		oldest := t.order.Front()
		t.order.Remove(oldest)
		delete(t.players, oldest.Value.(*playerState).id)
	}
	st := &playerState{id: id, limiter: rate.NewLimiter(t.every, t.burst)}
	t.players[id] = t.order.PushBack(st)
	return st
}

func (t *tracker) allow(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(id).limiter.Allow()
}

func (t *tracker) level(id string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.players[id]
	if !ok {
		return 0, false
	}
	st := el.Value.(*playerState)
	return st.level, st.hasLevel
}

func (t *tracker) setLevel(id string, level float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.get(id)
	st.level, st.hasLevel = level, true
}

func (t *tracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}
