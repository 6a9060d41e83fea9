package services

import "math"

type insertion struct {
	route, pos int
	delta      float64
	ok         bool
}

func (a insertion) beats(b insertion) bool {
	if !a.ok {
		return false
	}
	if !b.ok {
		return true
	}
	if a.delta != b.delta {
		return a.delta < b.delta
	}
	if a.route != b.route {
		return a.route < b.route
	}
	return a.pos < b.pos
}

// construct builds the initial solution by cheapest feasible insertion. The best
// insertion of every pending node is cached and only refreshed for the route
// that changed.
func (s *solver) construct() *solState {
	st := s.newState()

	best := make([]insertion, s.n)
	pending := make([]int, 0, s.n-1)
	for u := 1; u < s.n; u++ {
		pending = append(pending, u)
		best[u] = s.bestInsertion(st, u)
	}

	for len(pending) > 0 {
		if s.expired() {
			break
		}

		pick := -1
		for k, u := range pending {
			if !best[u].ok {
				continue
			}
			if pick < 0 || best[u].delta < best[pending[pick]].delta {
				pick = k
			}
		}
		if pick < 0 {
			break
		}

		u := pending[pick]
		r := best[u].route
		s.insertAt(st, u, r, best[u].pos)
		pending = append(pending[:pick], pending[pick+1:]...)

		for _, v := range pending {
			if best[v].route == r || !best[v].ok {
				best[v] = s.bestInsertion(st, v)
				continue
			}
			if cand := s.bestInsertionInRoute(st, v, r); cand.beats(best[v]) {
				best[v] = cand
			}
		}
	}
	return st
}

func (s *solver) bestInsertion(st *solState, u int) insertion {
	best := insertion{}
	for r := range st.routes {
		if cand := s.bestInsertionInRoute(st, u, r); cand.beats(best) {
			best = cand
		}
	}
	return best
}

// bestInsertionInRoute evaluates every position of route r with the augmented cost.
func (s *solver) bestInsertionInRoute(st *solState, u, r int) insertion {
	route := st.routes[r]
	if !s.withinLoad(r, len(route)+1, st.load[r]+s.weights[u]) {
		return insertion{}
	}

	best := insertion{delta: math.Inf(1)}
	for j := 0; j <= len(route); j++ {
		prev, next := 0, 0
		if j > 0 {
			prev = route[j-1]
		}
		if j < len(route) {
			next = route[j]
		}

		distDelta := s.d(prev, u) + s.d(u, next) - s.d(prev, next)
		if !s.withinDistance(r, st.dist[r]+distDelta) {
			continue
		}

		delta := s.c(prev, u) + s.c(u, next) - s.c(prev, next)
		if delta < best.delta {
			best = insertion{route: r, pos: j, delta: delta, ok: true}
		}
	}
	if !best.ok {
		return insertion{}
	}
	return best
}
