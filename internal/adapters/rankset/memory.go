package rankset

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/metrics"
)

// Memory is an embedded RankedSet. One mutex covers both the treap and the
// totals map, so every operation is a single critical section.
type Memory struct {
	mu      sync.Mutex
	root    *node
	members map[string]int64
	totals  map[string]int64
}

var _ RankedSet = (*Memory)(nil)

// NewMemory returns an empty embedded ranked set.
func NewMemory() *Memory {
	return &Memory{
		members: make(map[string]int64),
		totals:  make(map[string]int64),
	}
}

// Apply implements RankedSet.Apply in O(log n) expected time.
func (m *Memory) Apply(_ context.Context, playerID string, delta int64, capacity int, seed *int64) (Update, error) {
	start := time.Now()
	defer observe("apply", start)

	m.mu.Lock()
	defer m.mu.Unlock()

	total, ok := m.totals[playerID]
	if !ok {
		if seed == nil {
			return Update{}, ErrSeedRequired
		}
		total = *seed
	}
	total += delta
	m.totals[playerID] = total

	admit := false
	if cur, in := m.members[playerID]; in {
		m.root = deleteNode(m.root, playerID, cur)
		admit = true
	} else if len(m.members) < capacity {
		admit = true
	} else if low := lowest(m.root); low == nil || total > low.score {
		admit = true
	}

	var rank int64
	if admit {
		m.root = insert(m.root, playerID, total, rand.Uint64())
		m.members[playerID] = total
		rank = int64(countGreater(m.root, total)) + 1
	}
	size := int64(len(m.members))
	metrics.UpdateRankSetSize(size)
	return Update{Total: total, Rank: rank, Size: size}, nil
}

// Trim implements RankedSet.Trim.
func (m *Memory) Trim(_ context.Context, capacity int) ([]string, error) {
	start := time.Now()
	defer observe("trim", start)

	m.mu.Lock()
	defer m.mu.Unlock()

	excess := len(m.members) - capacity
	if excess <= 0 {
		return nil, nil
	}
	victims := make([]*node, 0, excess)
	collectLowest(m.root, excess, &victims)

	evicted := make([]string, 0, len(victims))
	for _, v := range victims {
		id, score := v.id, v.score
		m.root = deleteNode(m.root, id, score)
		delete(m.members, id)
		evicted = append(evicted, id)
	}
	metrics.UpdateRankSetSize(int64(len(m.members)))
	return evicted, nil
}

// Load implements RankedSet.Load.
func (m *Memory) Load(_ context.Context, members []model.Member) error {
	start := time.Now()
	defer observe("load", start)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mb := range members {
		total := mb.TotalScore
		if cur, ok := m.totals[mb.PlayerID]; ok && cur > total {
			total = cur
		}
		m.totals[mb.PlayerID] = total
		if cur, in := m.members[mb.PlayerID]; in {
			m.root = deleteNode(m.root, mb.PlayerID, cur)
		}
		m.root = insert(m.root, mb.PlayerID, total, rand.Uint64())
		m.members[mb.PlayerID] = total
	}
	metrics.UpdateRankSetSize(int64(len(m.members)))
	return nil
}

// Card implements RankedSet.Card.
func (m *Memory) Card(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.members)), nil
}

// Top implements RankedSet.Top.
func (m *Memory) Top(_ context.Context, n int) ([]model.Member, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	nodes := make([]*node, 0, min(n, len(m.members)))
	collectHighest(m.root, n, &nodes)
	out := make([]model.Member, len(nodes))
	for i, nd := range nodes {
		out[i] = model.Member{PlayerID: nd.id, TotalScore: nd.score}
	}
	return out, nil
}

func observe(op string, start time.Time) {
	metrics.RecordRankSetOpLatency(op, float64(time.Since(start).Microseconds())/1000)
}
