package vcd

// tracker remembers the last encoding observed for every variable.
// Replays walk variables in the order they were first tracked.
type tracker struct {
	last  map[*Variable]string
	order []*Variable
}

func newTracker() *tracker {
	return &tracker{last: make(map[*Variable]string)}
}

// observe records enc for v and reports whether it differs from the
// previous value. The first observation of a variable always counts as a
// change.
func (t *tracker) observe(v *Variable, enc string) bool {
	prev, ok := t.last[v]
	if ok && prev == enc {
		return false
	}
	if !ok {
		t.order = append(t.order, v)
	}
	t.last[v] = enc
	return true
}

func (t *tracker) empty() bool { return len(t.order) == 0 }

// writeValues emits every tracked value as a change record. Events hold
// no value and are never replayed.
func (t *tracker) writeValues(s *sink) {
	for _, v := range t.order {
		if v.typ == Event {
			continue
		}
		s.printf("%s%x\n", t.last[v], v.id)
	}
}

// writeUnknowns emits every tracked non-real variable in its unknown state.
func (t *tracker) writeUnknowns(s *sink) {
	for _, v := range t.order {
		if v.typ == Event {
			continue
		}
		if rec, ok := unknownRecord(v.kind); ok {
			s.printf("%s%x\n", rec, v.id)
		}
	}
}
