package utils

type Set[K comparable] map[K]struct{}

func NewSet[K comparable](values ...K) Set[K] {
	s := make(Set[K])
	s.PutAll(values)
	return s
}

func (s Set[K]) Contains(key K) bool {
	_, ok := s[key]
	return ok
}

func (s Set[K]) Put(key K) {
	s[key] = struct{}{}
}

func (s Set[K]) PutAll(keys []K) {
	for _, key := range keys {
		s.Put(key)
	}
}
