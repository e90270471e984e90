package checker

import "encoding/binary"

// State is one explored state: the packed data bytes plus a back-link to
// the predecessor it was derived from. Back-links form the counterexample
// chain; they are weak borrows into the seen set, which never evicts.
type State struct {
	Previous *State
	Data     []byte
}

// NewState allocates an all-undefined state of size bytes.
func NewState(size int) *State {
	return &State{Data: make([]byte, size)}
}

// Dup returns a copy of s whose Previous links back to s.
func (s *State) Dup() *State {
	n := &State{Previous: s, Data: make([]byte, len(s.Data))}
	copy(n.Data, s.Data)
	return n
}

// Equal compares state data.
func (s *State) Equal(o *State) bool {
	if len(s.Data) != len(o.Data) {
		return false
	}
	for i := range s.Data {
		if s.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// Hash returns the 64-bit MurmurHash64A of the state data.
func (s *State) Hash() uint64 {
	return murmurHash64A(s.Data)
}

// Handle returns a handle over a bit range of the state data.
func (s *State) Handle(offset, width uint64) Handle {
	return NewHandle(s.Data, offset, width)
}

// murmurHash64A is MurmurHash64A by Austin Appleby with a zero seed.
func murmurHash64A(key []byte) uint64 {
	const m = 0xc6a4a7935bd1e995
	const r = 47

	h := uint64(len(key)) * m

	full := len(key) / 8 * 8
	for i := 0; i < full; i += 8 {
		k := binary.LittleEndian.Uint64(key[i:])

		k *= m
		k ^= k >> r
		k *= m

		h ^= k
		h *= m
	}

	tail := key[full:]
	switch len(tail) & 7 {
	case 7:
		h ^= uint64(tail[6]) << 48
		fallthrough
	case 6:
		h ^= uint64(tail[5]) << 40
		fallthrough
	case 5:
		h ^= uint64(tail[4]) << 32
		fallthrough
	case 4:
		h ^= uint64(tail[3]) << 24
		fallthrough
	case 3:
		h ^= uint64(tail[2]) << 16
		fallthrough
	case 2:
		h ^= uint64(tail[1]) << 8
		fallthrough
	case 1:
		h ^= uint64(tail[0])
		h *= m
	}

	h ^= h >> r
	h *= m
	h ^= h >> r

	return h
}
