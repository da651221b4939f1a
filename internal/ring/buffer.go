package ring

import (
	"fmt"
	"iter"
)

// Buffer is a fixed-capacity circular buffer. Once full, every push overwrites
// the oldest element. Indices passed to At are logical: 0 is the oldest element
// and Len()-1 the newest.
//
// Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	buf    []T
	cursor int // next physical slot to write
	size   int
}

// New returns a Buffer with the given capacity.
func New[T any](capacity int) (*Buffer[T], error) {
	b := &Buffer[T]{}
	if err := b.Resize(capacity); err != nil {
		return nil, err
	}
	return b, nil
}

// Resize reinitialises the buffer with a new capacity, discarding its contents.
func (b *Buffer[T]) Resize(capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("%w: capacity %d must not be negative", ErrInvalidArgument, capacity)
	}
	b.buf = make([]T, capacity)
	b.cursor = 0
	b.size = 0
	return nil
}

// Clear drops every element but keeps the capacity.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.buf {
		b.buf[i] = zero
	}
	b.cursor = 0
	b.size = 0
}

func (b *Buffer[T]) Cap() int    { return len(b.buf) }
func (b *Buffer[T]) Len() int    { return b.size }
func (b *Buffer[T]) Empty() bool { return b.size == 0 }
func (b *Buffer[T]) Full() bool  { return len(b.buf) > 0 && b.size == len(b.buf) }

// PushPop appends v and returns the element it overwrote. Until the buffer is
// full the returned value is the zero value of T. On a zero-capacity buffer v
// is returned unchanged.
func (b *Buffer[T]) PushPop(v T) T {
	if len(b.buf) == 0 {
		return v
	}
	old := b.buf[b.cursor]
	if b.size < len(b.buf) {
		var zero T
		old = zero
		b.size++
	}
	b.buf[b.cursor] = v
	b.cursor++
	if b.cursor == len(b.buf) {
		b.cursor = 0
	}
	return old
}

// At returns the element at logical index i.
func (b *Buffer[T]) At(i int) (T, error) {
	if i < 0 || i >= b.size {
		var zero T
		return zero, fmt.Errorf("%w: index %d not in [0, %d)", ErrOutOfRange, i, b.size)
	}
	return b.buf[b.physical(i)], nil
}

// All yields the elements oldest to newest. The sequence can be ranged over
// any number of times.
func (b *Buffer[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		first, second := b.Segments()
		for _, v := range first {
			if !yield(v) {
				return
			}
		}
		for _, v := range second {
			if !yield(v) {
				return
			}
		}
	}
}

// Segments returns the contents as at most two contiguous views into the
// underlying storage, oldest to newest. second is empty unless the data wraps.
// The views alias the buffer and are invalidated by the next write.
func (b *Buffer[T]) Segments() (first, second []T) {
	if b.size == 0 {
		return nil, nil
	}
	start := b.oldest()
	if start+b.size <= len(b.buf) {
		return b.buf[start : start+b.size], nil
	}
	return b.buf[start:], b.buf[:b.size-(len(b.buf)-start)]
}

// Slice copies the contents into a new slice, oldest to newest.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, 0, b.size)
	first, second := b.Segments()
	out = append(out, first...)
	return append(out, second...)
}

// Assign overwrites the buffer with src, which must hold exactly Cap() values
// ordered oldest to newest. The buffer is full afterwards.
func (b *Buffer[T]) Assign(src []T) error {
	if len(src) != len(b.buf) {
		return fmt.Errorf("%w: got %d values for capacity %d", ErrInvalidArgument, len(src), len(b.buf))
	}
	copy(b.buf, src)
	b.cursor = 0
	b.size = len(b.buf)
	return nil
}

func (b *Buffer[T]) oldest() int {
	return (b.cursor - b.size + len(b.buf)) % len(b.buf)
}

func (b *Buffer[T]) physical(i int) int {
	return (b.oldest() + i) % len(b.buf)
}
