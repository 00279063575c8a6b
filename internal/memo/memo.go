// Package memo implements the value-to-code hash tables backing the
// dictionary builders. Values are stored by copy, in insertion order, so a
// table never depends on caller-owned memory and can replay its distinct
// values when a dictionary is materialised.
package memo

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-metro"
)

const (
	minTableSize = 32

	// loadFactorNum/loadFactorDen is the occupancy threshold past which a
	// table doubles.
	loadFactorNum = 3
	loadFactorDen = 4
)

type slot struct {
	hash uint64
	code int32
}

// table is the open-addressing core shared by both memo tables: linear
// probing over power-of-two sized slot arrays, keyed by a 64-bit hash with
// the dense code resolving equality through the eq callback.
type table struct {
	slots []slot
	size  int
}

func newTable() table {
	slots := make([]slot, minTableSize)
	for i := range slots {
		slots[i].code = -1
	}
	return table{slots: slots}
}

// lookup probes for hash, calling eq with candidate codes until it matches
// or an empty slot is found. It returns the slot index and whether the probe
// hit an existing entry.
func (t *table) lookup(hash uint64, eq func(code int32) bool) (int, bool) {
	mask := uint64(len(t.slots) - 1)
	i := hash & mask
	for {
		s := t.slots[i]
		if s.code < 0 {
			return int(i), false
		}
		if s.hash == hash && eq(s.code) {
			return int(i), true
		}
		i = (i + 1) & mask
	}
}

func (t *table) insert(i int, hash uint64, code int32) {
	t.slots[i] = slot{hash: hash, code: code}
	t.size++
}

func (t *table) needsGrow() bool {
	return t.size*loadFactorDen >= len(t.slots)*loadFactorNum
}

func (t *table) grow() {
	old := t.slots
	t.slots = make([]slot, len(old)*2)
	for i := range t.slots {
		t.slots[i].code = -1
	}
	mask := uint64(len(t.slots) - 1)
	for _, s := range old {
		if s.code < 0 {
			continue
		}
		i := s.hash & mask
		for t.slots[i].code >= 0 {
			i = (i + 1) & mask
		}
		t.slots[i] = s
	}
}

// BinaryTable memoises byte strings. Values are copied into a flat data
// buffer delimited by offsets, mirroring the binary array layout.
type BinaryTable struct {
	table

	data    []byte
	offsets []uint32
}

func NewBinaryTable() *BinaryTable {
	return &BinaryTable{table: newTable(), offsets: []uint32{0}}
}

// Size returns the number of distinct values observed.
func (t *BinaryTable) Size() int { return t.size }

// Value returns the memoised value for code. The returned slice borrows the
// table's storage.
func (t *BinaryTable) Value(code int) []byte {
	return t.data[t.offsets[code]:t.offsets[code+1]]
}

// GetOrInsert returns the code for v, assigning the next dense code when v
// has not been seen before.
func (t *BinaryTable) GetOrInsert(v []byte) (code int, found bool) {
	hash := metro.Hash64(v, 0)
	eq := func(code int32) bool {
		return string(t.Value(int(code))) == string(v)
	}
	i, ok := t.lookup(hash, eq)
	if ok {
		return int(t.slots[i].code), true
	}

	code = t.size
	t.data = append(t.data, v...)
	t.offsets = append(t.offsets, uint32(len(t.data)))
	t.insert(i, hash, int32(code))
	if t.needsGrow() {
		t.grow()
	}
	return code, false
}

// Uint64Table memoises fixed-width scalars by their 64-bit representation.
// Callers map values to bit patterns, so float keys collide exactly when
// their bits are identical.
type Uint64Table struct {
	table

	values []uint64
}

func NewUint64Table() *Uint64Table {
	return &Uint64Table{table: newTable()}
}

// Size returns the number of distinct values observed.
func (t *Uint64Table) Size() int { return t.size }

// Value returns the memoised bit pattern for code.
func (t *Uint64Table) Value(code int) uint64 { return t.values[code] }

// GetOrInsert returns the code for v, assigning the next dense code when v
// has not been seen before.
func (t *Uint64Table) GetOrInsert(v uint64) (code int, found bool) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	hash := xxhash.Sum64(buf[:])
	eq := func(code int32) bool {
		return t.values[code] == v
	}
	i, ok := t.lookup(hash, eq)
	if ok {
		return int(t.slots[i].code), true
	}

	code = t.size
	t.values = append(t.values, v)
	t.insert(i, hash, int32(code))
	if t.needsGrow() {
		t.grow()
	}
	return code, false
}
