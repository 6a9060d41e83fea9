package services

// localSearch applies improving moves under the augmented cost until none is left
// or the search expires.
func (s *solver) localSearch(st *solState) {
	for !s.expired() {
		improved := s.insertUnassigned(st)
		if s.relocatePass(st) {
			improved = true
		}
		if s.swapPass(st) {
			improved = true
		}
		if s.twoOptPass(st) {
			improved = true
		}
		if !improved {
			return
		}
	}
}

func (s *solver) insertUnassigned(st *solState) bool {
	changed := false
	for u := 1; u < s.n; u++ {
		if st.routeOf[u] >= 0 {
			continue
		}
		if ins := s.bestInsertion(st, u); ins.ok {
			s.insertAt(st, u, ins.route, ins.pos)
			changed = true
		}
	}
	return changed
}

// relocatePass moves single nodes to their best position in any route.
func (s *solver) relocatePass(st *solState) bool {
	changed := false
	tmp := make([]int, 0, s.n)

	for u := 1; u < s.n; u++ {
		if s.expired() {
			return changed
		}
		r := st.routeOf[u]
		if r < 0 {
			continue
		}

		route := st.routes[r]
		i := st.pos[u]
		prev, next := s.neighbors(route, i)
		removeGain := s.c(prev, u) + s.c(u, next) - s.c(prev, next)
		removeDist := s.d(prev, u) + s.d(u, next) - s.d(prev, next)
		srcDist := st.dist[r] - removeDist

		bestDelta, bestR, bestJ := -improvementEps, -1, -1
		for rr := range st.routes {
			var target []int
			baseDist := st.dist[rr]
			if rr == r {
				tmp = append(tmp[:0], route[:i]...)
				tmp = append(tmp, route[i+1:]...)
				target = tmp
				baseDist = srcDist
			} else {
				if !s.withinDistance(r, srcDist) {
					continue
				}
				if !s.withinLoad(rr, len(st.routes[rr])+1, st.load[rr]+s.weights[u]) {
					continue
				}
				target = st.routes[rr]
			}

			for j := 0; j <= len(target); j++ {
				if rr == r && j == i {
					continue
				}
				p, q := 0, 0
				if j > 0 {
					p = target[j-1]
				}
				if j < len(target) {
					q = target[j]
				}
				delta := s.c(p, u) + s.c(u, q) - s.c(p, q) - removeGain
				if delta >= bestDelta {
					continue
				}
				if !s.withinDistance(rr, baseDist+s.d(p, u)+s.d(u, q)-s.d(p, q)) {
					continue
				}
				bestDelta, bestR, bestJ = delta, rr, j
			}
		}

		if bestR >= 0 {
			s.removeNode(st, u)
			s.insertAt(st, u, bestR, bestJ)
			changed = true
		}
	}
	return changed
}

// swapPass exchanges two nodes of different routes.
func (s *solver) swapPass(st *solState) bool {
	changed := false
	for u := 1; u < s.n; u++ {
		if s.expired() {
			return changed
		}
		ru := st.routeOf[u]
		if ru < 0 {
			continue
		}
		for v := u + 1; v < s.n; v++ {
			rv := st.routeOf[v]
			if rv < 0 || rv == ru {
				continue
			}

			pu, nu := s.neighbors(st.routes[ru], st.pos[u])
			pv, nv := s.neighbors(st.routes[rv], st.pos[v])

			delta := s.c(pu, v) + s.c(v, nu) - s.c(pu, u) - s.c(u, nu) +
				s.c(pv, u) + s.c(u, nv) - s.c(pv, v) - s.c(v, nv)
			if delta >= -improvementEps {
				continue
			}

			du := st.dist[ru] + s.d(pu, v) + s.d(v, nu) - s.d(pu, u) - s.d(u, nu)
			dv := st.dist[rv] + s.d(pv, u) + s.d(u, nv) - s.d(pv, v) - s.d(v, nv)
			if !s.withinDistance(ru, du) || !s.withinDistance(rv, dv) {
				continue
			}
			wu, wv := s.weights[u], s.weights[v]
			if !s.withinLoad(ru, len(st.routes[ru]), st.load[ru]-wu+wv) ||
				!s.withinLoad(rv, len(st.routes[rv]), st.load[rv]-wv+wu) {
				continue
			}

			st.routes[ru][st.pos[u]] = v
			st.routes[rv][st.pos[v]] = u
			s.reindex(st, ru)
			s.reindex(st, rv)
			changed = true
			ru = st.routeOf[u]
		}
	}
	return changed
}

// twoOptPass reverses route segments. Internal arc sums are carried forward and
// backward so asymmetric matrices are priced correctly.
func (s *solver) twoOptPass(st *solState) bool {
	changed := false
	for r := range st.routes {
		for s.twoOptRoute(st, r) {
			changed = true
			if s.expired() {
				return changed
			}
		}
	}
	return changed
}

func (s *solver) twoOptRoute(st *solState, r int) bool {
	route := st.routes[r]
	L := len(route)
	if L < 2 {
		return false
	}

	at := func(k int) int {
		if k < 0 || k >= L {
			return 0
		}
		return route[k]
	}

	for i := 0; i < L-1; i++ {
		fwdC, revC, fwdD, revD := 0.0, 0.0, 0.0, 0.0
		before := at(i - 1)
		for j := i + 1; j < L; j++ {
			fwdC += s.c(route[j-1], route[j])
			revC += s.c(route[j], route[j-1])
			fwdD += s.d(route[j-1], route[j])
			revD += s.d(route[j], route[j-1])
			after := at(j + 1)

			delta := s.c(before, route[j]) + revC + s.c(route[i], after) -
				s.c(before, route[i]) - fwdC - s.c(route[j], after)
			if delta >= -improvementEps {
				continue
			}
			newDist := st.dist[r] + s.d(before, route[j]) + revD + s.d(route[i], after) -
				s.d(before, route[i]) - fwdD - s.d(route[j], after)
			if !s.withinDistance(r, newDist) {
				continue
			}

			for a, b := i, j; a < b; a, b = a+1, b-1 {
				route[a], route[b] = route[b], route[a]
			}
			s.reindex(st, r)
			return true
		}
	}
	return false
}
