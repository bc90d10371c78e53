package ranking

import "sync"

// releaseGate hands finished queries to emit in query index order,
// holding back any that finish ahead of an earlier query.
type releaseGate struct {
	mu      sync.Mutex
	next    int
	pending map[int]QueryResult
	emit    func(QueryResult) error
}

func newReleaseGate(emit func(QueryResult) error) *releaseGate {
	return &releaseGate{
		pending: make(map[int]QueryResult),
		emit:    emit,
	}
}

// release records query i as finished and emits every query that is now
// unblocked. emit runs under the gate lock, so calls never overlap.
func (g *releaseGate) release(i int, r QueryResult) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending[i] = r
	for {
		next, ok := g.pending[g.next]
		if !ok {
			return nil
		}
		delete(g.pending, g.next)
		g.next++
		if err := g.emit(next); err != nil {
			return err
		}
	}
}

// released returns how many queries have been emitted.
func (g *releaseGate) released() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next
}
