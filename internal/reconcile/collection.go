package reconcile

import (
	"fmt"
	"slices"
)

// Collection is an insertion-ordered set of records keyed by id.
type Collection[R any] struct {
	id    func(R) int
	items []R
	index map[int]int
}

// NewCollection builds a collection from records, rejecting duplicate ids.
func NewCollection[R any](id func(R) int, records []R) (*Collection[R], error) {
	c := &Collection[R]{
		id:    id,
		items: make([]R, 0, len(records)),
		index: make(map[int]int, len(records)),
	}
	for _, r := range records {
		if err := c.Append(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collection[R]) Len() int {
	return len(c.items)
}

func (c *Collection[R]) Get(id int) (R, bool) {
	i, ok := c.index[id]
	if !ok {
		var zero R
		return zero, false
	}
	return c.items[i], true
}

// Append adds r at the end of the collection.
func (c *Collection[R]) Append(r R) error {
	id := c.id(r)
	if _, ok := c.index[id]; ok {
		return fmt.Errorf("duplicate id %d", id)
	}
	c.index[id] = len(c.items)
	c.items = append(c.items, r)
	return nil
}

// Replace swaps the record with r's id in place. It reports false when the
// id is absent.
func (c *Collection[R]) Replace(r R) bool {
	i, ok := c.index[c.id(r)]
	if !ok {
		return false
	}
	c.items[i] = r
	return true
}

// Remove drops the record with id, keeping the order of the rest.
func (c *Collection[R]) Remove(id int) (R, bool) {
	i, ok := c.index[id]
	if !ok {
		var zero R
		return zero, false
	}
	removed := c.items[i]
	c.items = slices.Delete(c.items, i, i+1)
	delete(c.index, id)
	for j := i; j < len(c.items); j++ {
		c.index[c.id(c.items[j])] = j
	}
	return removed, true
}

// Records returns a copy of the records in order.
func (c *Collection[R]) Records() []R {
	return slices.Clone(c.items)
}

// IDs returns the ids in order.
func (c *Collection[R]) IDs() []int {
	ids := make([]int, len(c.items))
	for i, r := range c.items {
		ids[i] = c.id(r)
	}
	return ids
}

func (c *Collection[R]) clone() *Collection[R] {
	index := make(map[int]int, len(c.index))
	for k, v := range c.index {
		index[k] = v
	}
	return &Collection[R]{id: c.id, items: slices.Clone(c.items), index: index}
}
