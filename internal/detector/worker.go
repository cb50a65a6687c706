package detector

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/frcnn-detect/internal/imaging"
)

// Outcome is the single value delivered by DetectAsync.
type Outcome struct {
	Result *Result
	Err    error
}

// DetectAsync runs Detect on a background goroutine so the caller stays
// responsive. The returned channel yields exactly one Outcome and is then
// closed. A running request cannot be cancelled.
func (d *Detector) DetectAsync(raw []byte, kind imaging.Kind) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := d.Detect(raw, kind)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}

// BatchItem is one independent request of a batch.
type BatchItem struct {
	Name string
	Kind imaging.Kind

	// Load produces the raw image bytes. It runs on the worker goroutine.
	Load func(ctx context.Context) ([]byte, error)
}

// BatchResult pairs an item's name with its outcome.
type BatchResult struct {
	Name   string
	Result *Result
	Err    error
}

// Batch runs items on at most workers goroutines and returns one result per
// item, in item order. A failing item does not stop the others. Cancelling ctx
// stops new items from starting; those report ctx.Err(). Items already running
// finish normally.
func (d *Detector) Batch(ctx context.Context, items []BatchItem, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]BatchResult, len(items))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, item := range items {
		results[i].Name = item.Name
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			raw, err := item.Load(ctx)
			if err != nil {
				results[i].Err = err
				return nil
			}

			results[i].Result, results[i].Err = d.Detect(raw, item.Kind)
			if results[i].Err != nil {
				d.logger.Warnw("batch item failed", "item", item.Name, "error", results[i].Err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}
