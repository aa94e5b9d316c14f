package orders

// callers must not hold mu

func (s *MemoryStore) product(id string) Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[id]
}

func (s *MemoryStore) order(id string) Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.orders[id]
}

func (s *MemoryStore) setReserved(id string, reserved int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.products[id]
	p.ReservedStock = reserved
	s.st.products[id] = p
}

func (s *MemoryStore) injectConflicts(n int) {
	s.mu.Lock()
	s.conflicts = n
	s.mu.Unlock()
}

func (s *MemoryStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCalls
}

