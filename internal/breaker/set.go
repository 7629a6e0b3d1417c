package breaker

// Set holds one breaker per provider. The map is built at gateway startup
// and never mutated afterwards, so lookups need no locking.
type Set struct {
	breakers map[string]*CircuitBreaker
	names    []string
}

// NewSet creates a breaker for each named provider.
func NewSet(names []string, settings Settings, onChange StateChangeFunc) *Set {
	s := &Set{
		breakers: make(map[string]*CircuitBreaker, len(names)),
		names:    append([]string(nil), names...),
	}
	for _, name := range names {
		s.breakers[name] = New(name, settings, onChange)
	}
	return s
}

// Get returns the breaker for the named provider, or nil if unknown.
func (s *Set) Get(name string) *CircuitBreaker {
	return s.breakers[name]
}

// ForceCloseAll closes every breaker and zeroes its counters.
func (s *Set) ForceCloseAll() {
	for _, cb := range s.breakers {
		cb.ForceClose()
	}
}

// Stats returns a snapshot of every breaker keyed by provider name.
func (s *Set) Stats() map[string]Stats {
	out := make(map[string]Stats, len(s.breakers))
	for name, cb := range s.breakers {
		out[name] = cb.Snapshot()
	}
	return out
}
