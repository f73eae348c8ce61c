package favorites

// toggle is one optimistic like/unlike. applyOptimistic runs first, then
// exactly one of commit or rollback.
type toggle struct {
	s     *Synchronizer
	id    int
	liked bool // membership after the toggle
	gen   uint64
}

// inflight tracks unresolved toggles of one track.
type inflight struct {
	pending int
	// confirmed is the membership the server is known to hold.
	confirmed bool
}

func (s *Synchronizer) begin(id int) *toggle {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, liked := s.ids[id]
	return &toggle{s: s, id: id, liked: !liked, gen: s.gen}
}

func (t *toggle) applyOptimistic() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != t.gen {
		return
	}

	f, ok := s.inflight[t.id]
	if !ok {
		f = &inflight{confirmed: !t.liked}
		s.inflight[t.id] = f
	}
	f.pending++
	t.set(t.liked)
}

// commit records that the server now holds the toggled value.
func (t *toggle) commit() {
	t.resolve(true)
	t.s.logger.Debug("favorite saved", "track", t.id, "liked", t.liked)
}

// rollback drops the toggle. Once no toggle of the track is in flight,
// the local set returns to the last confirmed membership.
func (t *toggle) rollback() {
	t.resolve(false)
}

func (t *toggle) resolve(ok bool) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != t.gen {
		return
	}

	f := s.inflight[t.id]
	if f == nil {
		return
	}
	if ok {
		f.confirmed = t.liked
	}
	f.pending--
	if f.pending > 0 {
		return
	}
	delete(s.inflight, t.id)
	t.set(f.confirmed)
}

// set must be called with the synchronizer lock held.
func (t *toggle) set(liked bool) {
	if liked {
		t.s.ids[t.id] = struct{}{}
	} else {
		delete(t.s.ids, t.id)
	}
}
