// Package convergence scores how far a set of CRDT replicas have drifted
// apart, using the mean pairwise Jaccard index over their delta sets.
package convergence

import (
	"github.com/dchest/siphash"
)

// Set holds the delta identifiers observed at one replica during one
// sampling round. Elements are opaque keys (here, grid cell coordinates
// rendered as "x,y"), deduplicated by key.
type Set map[string]struct{}

func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s Set) Add(key string) {
	s[key] = struct{}{}
}

func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Digest returns an order-independent 64-bit digest of the set: the XOR of
// the siphash of every element. Two identical sets always share a digest,
// so it is a cheap identity hint for offline analysis. It is not a proof
// of equality and is never used to short-circuit scoring.
func (s Set) Digest() uint64 {
	var d uint64
	for k := range s {
		d ^= siphash.Hash(567, 890, []byte(k))
	}
	return d
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets are trivially
// consistent and score 1.0; otherwise the union is non-empty and the
// division is safe.
func Jaccard(a, b Set) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for k := range small {
		if large.Has(k) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Index returns the arithmetic mean of the Jaccard index over every
// unordered pair of replicas, C(N,2) pairs exactly. A single replica (or
// none) cannot diverge and scores 1.0. The result does not depend on
// replica order or on map iteration order.
func Index(replicas []Set) float64 {
	n := len(replicas)
	if n < 2 {
		return 1.0
	}
	sum := 0.0
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += Jaccard(replicas[i], replicas[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}
