package gke

import (
	"crypto/rand"
	"sync"
)

// InsertIDGenerator hands out insert IDs for records that arrive without one.
// The Cloud Logging API drops entries that repeat an insert ID for the same
// resource within a short window, so IDs must not repeat within a process.
type InsertIDGenerator interface {
	Next() string
}

const (
	insertIDSize  = 17
	insertIDChars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// CounterInsertIDGenerator starts from a random base-36 string and steps it
// forward by one on every call. While the length stays fixed the IDs sort in
// the order they were issued.
type CounterInsertIDGenerator struct {
	mu   sync.Mutex
	next []byte
}

// NewInsertIDGenerator returns a generator seeded with a random
// 17-character ID.
func NewInsertIDGenerator() (*CounterInsertIDGenerator, error) {
	seed := make([]byte, insertIDSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	for i, b := range seed {
		seed[i] = insertIDChars[int(b)%len(insertIDChars)]
	}
	return NewInsertIDGeneratorFrom(string(seed)), nil
}

// NewInsertIDGeneratorFrom returns a generator whose first ID is the
// successor of start.
func NewInsertIDGeneratorFrom(start string) *CounterInsertIDGenerator {
	return &CounterInsertIDGenerator{next: []byte(start)}
}

func (g *CounterInsertIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next = successor(g.next)
	return string(g.next)
}

// successor increments the rightmost alphanumeric character, carrying to
// the left. Digits wrap 9->0 and letters z->a (Z->A); a carry out of the
// leftmost alphanumeric prepends "1", "a" or "A" to match its class.
// Strings without alphanumerics are returned as "1".
func successor(id []byte) []byte {
	out := append([]byte(nil), id...)
	last := -1
	for i := len(out) - 1; i >= 0; i-- {
		if !isAlnum(out[i]) {
			continue
		}
		last = i
		switch c := out[i]; {
		case c == '9':
			out[i] = '0'
		case c == 'z':
			out[i] = 'a'
		case c == 'Z':
			out[i] = 'A'
		default:
			out[i] = c + 1
			return out
		}
	}
	if last < 0 {
		return []byte("1")
	}
	var lead byte
	switch out[last] {
	case '0':
		lead = '1'
	case 'a':
		lead = 'a'
	default:
		lead = 'A'
	}
	grown := make([]byte, 0, len(out)+1)
	grown = append(grown, out[:last]...)
	grown = append(grown, lead)
	return append(grown, out[last:]...)
}

func isAlnum(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
