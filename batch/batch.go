// Package batch splits long lists of bug numbers into requests the server
// will accept and puts the per-request results back together.
//
// The Debbugs server refuses or times out on very large get_status calls,
// so status lookups are cut into batches of at most DefaultSize ids. Each
// batch carries its position so results can be reassembled in request order
// even if they arrive out of order.
//
// # Usage
//
// To split:
//
//	splitter := batch.NewSplitter(batch.DefaultSize)
//	for _, b := range splitter.Split(ids) {
//	    ...
//	}
//
// To run a function per batch and collect the results:
//
//	reports, err := batch.Run(ctx, ids, batch.DefaultSize, fetch)
package batch

import (
	"context"
	"errors"
	"fmt"
)

// DefaultSize is the largest number of ids sent in one request.
const DefaultSize = 500

var (
	// ErrDuplicateBatch is returned when a batch result is added twice.
	ErrDuplicateBatch = errors.New("duplicate batch")
	// ErrUnknownBatch is returned for a batch index outside the split.
	ErrUnknownBatch = errors.New("unknown batch")
	// ErrIncomplete is returned when results are requested before every
	// batch has been added.
	ErrIncomplete = errors.New("incomplete batch results")
)

// Batch is one slice of a larger id list.
type Batch struct {
	Index int   // position in the split, from 0
	First bool  // first batch of the split
	Last  bool  // last batch of the split
	IDs   []int // shares memory with the input
}

// Splitter cuts id lists into batches of at most size ids.
type Splitter struct {
	size int
}

// NewSplitter creates a Splitter. A size below 1 means DefaultSize.
func NewSplitter(size int) *Splitter {
	if size < 1 {
		size = DefaultSize
	}
	return &Splitter{size: size}
}

// Size returns the batch size.
func (s *Splitter) Size() int { return s.size }

// Split partitions ids in order. An empty list yields no batches.
func (s *Splitter) Split(ids []int) []Batch {
	if len(ids) == 0 {
		return nil
	}

	batches := make([]Batch, 0, (len(ids)+s.size-1)/s.size)
	for offset := 0; offset < len(ids); offset += s.size {
		end := min(offset+s.size, len(ids))
		batches = append(batches, Batch{
			Index: len(batches),
			First: offset == 0,
			Last:  end == len(ids),
			IDs:   ids[offset:end],
		})
	}
	return batches
}

// Assembler collects per-batch results and concatenates them in batch
// order. It is not safe for concurrent use.
type Assembler[T any] struct {
	parts    [][]T
	received []bool
	count    int
}

// NewAssembler creates an Assembler expecting total batches.
func NewAssembler[T any](total int) *Assembler[T] {
	return &Assembler[T]{
		parts:    make([][]T, total),
		received: make([]bool, total),
	}
}

// Add records the results of batch index and reports whether every batch
// has now been added.
func (a *Assembler[T]) Add(index int, results []T) (complete bool, err error) {
	if index < 0 || index >= len(a.parts) {
		return false, fmt.Errorf("%w: index %d of %d", ErrUnknownBatch, index, len(a.parts))
	}
	if a.received[index] {
		return false, fmt.Errorf("%w: index %d", ErrDuplicateBatch, index)
	}
	a.parts[index] = results
	a.received[index] = true
	a.count++
	return a.Complete(), nil
}

// Complete reports whether every batch has been added.
func (a *Assembler[T]) Complete() bool {
	return a.count == len(a.parts)
}

// Result returns all results in batch order.
func (a *Assembler[T]) Result() ([]T, error) {
	if !a.Complete() {
		return nil, fmt.Errorf("%w: %d of %d batches", ErrIncomplete, a.count, len(a.parts))
	}

	var total int
	for _, p := range a.parts {
		total += len(p)
	}
	result := make([]T, 0, total)
	for _, p := range a.parts {
		result = append(result, p...)
	}
	return result, nil
}

// Run splits ids and calls fn for each batch in order, stopping at the
// first error. Results already collected are discarded on error. An empty
// id list makes no calls and returns an empty result.
func Run[T any](ctx context.Context, ids []int, size int, fn func(context.Context, Batch) ([]T, error)) ([]T, error) {
	batches := NewSplitter(size).Split(ids)
	asm := NewAssembler[T](len(batches))

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := fn(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("batch %d of %d: %w", b.Index+1, len(batches), err)
		}
		if _, err := asm.Add(b.Index, results); err != nil {
			return nil, err
		}
	}
	return asm.Result()
}
