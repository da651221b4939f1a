package online

import (
	"fmt"

	"github.com/sanspareilsmyn/factorlens/internal/ring"
)

// Cache holds the trailing window of one raw series. Its size is the length of
// the initial values and never changes.
type Cache struct {
	versioned
	window *ring.Buffer[float64]
	out    []float64
}

// NewCache builds a window from at least two initial values, oldest first.
func NewCache(initial []float64) (*Cache, error) {
	if len(initial) < 2 {
		return nil, fmt.Errorf("%w: cache needs at least 2 initial values, got %d", ErrConstruction, len(initial))
	}
	window, err := ring.New[float64](len(initial))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}
	if err := window.Assign(initial); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}
	return &Cache{
		window: window,
		out:    make([]float64, 0, len(initial)),
	}, nil
}

// Update appends batch to the window and evicts as many values from the front.
func (c *Cache) Update(batch []float64, version uint64) error {
	if c.applied(version) {
		return nil
	}
	if len(batch) > c.window.Cap() {
		return fmt.Errorf("%w: batch of %d for window of %d", ErrCapacity, len(batch), c.window.Cap())
	}
	c.out = c.out[:0]
	for _, v := range batch {
		c.out = append(c.out, c.window.PushPop(v))
	}
	c.mark(version)
	return nil
}

// Values copies the current window, oldest first.
func (c *Cache) Values() []float64 { return c.window.Slice() }

// Out returns the values evicted by the last applied update, oldest first. The
// slice is owned by the cache and overwritten by the next update.
func (c *Cache) Out() []float64 { return c.out }

func (c *Cache) WindowSize() int { return c.window.Cap() }
