package cmap

import "iter"

// All yields every entry, one shard at a time under that shard's read
// lock. The callback must not write to the map. Entries added to a shard
// already visited are missed.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, s := range m.shards {
			if !s.each(yield) {
				return
			}
		}
	}
}

func (s *shard[K, V]) each(yield func(K, V) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.items {
		if !yield(k, v) {
			return false
		}
	}
	return true
}

// SetIfAbsent stores value unless key is present, and reports whether it
// stored.
func (m *Map[K, V]) SetIfAbsent(key K, value V) bool {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.items[key]; dup {
		return false
	}
	s.items[key] = value
	return true
}

// Pop deletes key and returns the value it held.
func (m *Map[K, V]) Pop(key K) (V, bool) {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	delete(s.items, key)
	return v, ok
}

// DeleteIf removes the entries matching fn and returns how many it removed.
func (m *Map[K, V]) DeleteIf(fn func(key K, value V) bool) int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, v := range s.items {
			if fn(k, v) {
				delete(s.items, k)
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}

// ShardCount returns the number of shards.
func (m *Map[K, V]) ShardCount() int {
	return len(m.shards)
}

// ShardSizes returns the entry count of each shard, in shard order.
func (m *Map[K, V]) ShardSizes() []int {
	sizes := make([]int, len(m.shards))
	for i, s := range m.shards {
		s.mu.RLock()
		sizes[i] = len(s.items)
		s.mu.RUnlock()
	}
	return sizes
}
