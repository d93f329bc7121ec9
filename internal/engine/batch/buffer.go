// Package batch holds the per-worker relationship buffer that scanners fill
// and importers sort.
package batch

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Stride is the number of int64 slots per relationship tuple:
// key, neighbor, property reference, relationship id.
const Stride = 4

const (
	SlotSource      = 0
	SlotTarget      = 1
	SlotPropertyRef = 2
	SlotRelID       = 3
)

// NoPropertyRef marks a tuple without any stored properties.
const NoPropertyRef int64 = -1

// Buffer is a fixed-capacity batch of raw relationship tuples. It is owned by
// exactly one worker and reused across every batch that worker reads.
//
// Sorting never reorders the raw tuples. SortBySource and SortByTarget
// compute a stable permutation and materialize a keyed view from it: slot 0
// of every view tuple is the sort key and slot 1 the neighbor, so a view
// sorted by target holds (target, source, ref, id).
type Buffer struct {
	capacity int
	length   int

	raw  []int64
	view []int64
	perm []int32

	offsets []int
	targets []int64
}

func NewBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 || int64(capacity) > math.MaxInt32 {
		return nil, fmt.Errorf("batch capacity must be between 1 and %d, got %d", math.MaxInt32, capacity)
	}
	return &Buffer{
		capacity: capacity,
		raw:      make([]int64, capacity*Stride),
		view:     make([]int64, capacity*Stride),
		perm:     make([]int32, capacity),
		offsets:  make([]int, capacity+1),
		targets:  make([]int64, capacity),
	}, nil
}

// Add appends one tuple and reports false when the buffer is already full.
func (b *Buffer) Add(source, target, propertyRef, relationshipID int64) bool {
	if b.length == b.capacity {
		return false
	}
	i := b.length * Stride
	b.raw[i+SlotSource] = source
	b.raw[i+SlotTarget] = target
	b.raw[i+SlotPropertyRef] = propertyRef
	b.raw[i+SlotRelID] = relationshipID
	b.length++
	return true
}

func (b *Buffer) Reset() { b.length = 0 }

func (b *Buffer) IsFull() bool { return b.length == b.capacity }

// Len returns the number of tuples currently held.
func (b *Buffer) Len() int { return b.length }

func (b *Buffer) Cap() int { return b.capacity }

// Raw exposes the unsorted tuples in scan order. Callers must not modify it.
func (b *Buffer) Raw() []int64 { return b.raw[:b.length*Stride] }

// Permutation returns the index order produced by the most recent sort.
func (b *Buffer) Permutation() []int32 { return b.perm[:b.length] }

func (b *Buffer) SortBySource() []int64 {
	return b.sortBy(SlotSource, SlotTarget)
}

func (b *Buffer) SortByTarget() []int64 {
	return b.sortBy(SlotTarget, SlotSource)
}

func (b *Buffer) sortBy(keySlot, neighborSlot int) []int64 {
	perm := b.perm[:b.length]
	for i := range perm {
		perm[i] = int32(i)
	}
	raw := b.raw
	slices.SortStableFunc(perm, func(x, y int32) int {
		return cmp.Compare(raw[int(x)*Stride+keySlot], raw[int(y)*Stride+keySlot])
	})

	view := b.view[:b.length*Stride]
	for i, p := range perm {
		src := int(p) * Stride
		dst := i * Stride
		view[dst+SlotSource] = raw[src+keySlot]
		view[dst+SlotTarget] = raw[src+neighborSlot]
		view[dst+SlotPropertyRef] = raw[src+SlotPropertyRef]
		view[dst+SlotRelID] = raw[src+SlotRelID]
	}
	return view
}

// SpareOffsets is scratch space for per-key run boundaries, sized capacity+1.
func (b *Buffer) SpareOffsets() []int { return b.offsets }

// SpareTargets is scratch space for neighbor ids, sized to capacity.
func (b *Buffer) SpareTargets() []int64 { return b.targets }
