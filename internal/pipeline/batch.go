package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// maxBatchWorkers caps the default fan-out.
const maxBatchWorkers = 16

// Batch runs an Extractor over many documents. Every item gets a result at
// its input index; a panic while processing one item only fails that item.
type Batch struct {
	ex      Extractor
	logger  *slog.Logger
	workers int
}

type BatchOption func(*Batch)

// WithConcurrency bounds how many documents are processed at once.
// n <= 0 keeps the default of one worker per item, capped at 16.
func WithConcurrency(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.workers = n
		}
	}
}

func NewBatch(ex Extractor, logger *slog.Logger, opts ...BatchOption) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Batch{ex: ex, logger: logger}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Batch) ExtractBatch(ctx context.Context, reqs []entity.ExtractionRequest) []entity.ExtractionResult {
	out := make([]entity.ExtractionResult, len(reqs))
	if len(reqs) == 0 {
		return out
	}

	workers := b.workers
	if workers <= 0 {
		workers = min(len(reqs), maxBatchWorkers)
	}
	workers = min(workers, len(reqs))

	b.logger.Info("pipeline.batch.start", "documents", len(reqs), "workers", workers)

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range idx {
				out[i] = b.one(ctx, workerID, reqs[i])
			}
		}(w + 1)
	}
	for i := range reqs {
		idx <- i
	}
	close(idx)
	wg.Wait()

	ok := 0
	for _, r := range out {
		if r.Success {
			ok++
		}
	}
	b.logger.Info("pipeline.batch.done", "documents", len(reqs), "succeeded", ok, "failed", len(reqs)-ok)
	return out
}

func (b *Batch) one(ctx context.Context, workerID int, req entity.ExtractionRequest) (res entity.ExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("pipeline.batch.item_panic", "worker_id", workerID, "file", req.FileName, "panic", r)
			res = entity.FailedResult(req, fmt.Errorf("extraction panicked: %v", r), nil)
		}
	}()
	if err := ctx.Err(); err != nil {
		return entity.FailedResult(req, err, nil)
	}
	return b.ex.Extract(ctx, req)
}
