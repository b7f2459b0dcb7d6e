// Package bulkwrite accumulates independent document mutations and
// commits them as unordered bulk writes.
//
// It is the best-effort write path: a failed write does not stop the
// others, nothing is rolled back, and failures are reported as counts
// and logged as warnings. Invariant-bearing writes belong in txn.Run,
// never here.
package bulkwrite

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of operations sent per BulkWrite call.
const DefaultBatchSize = 500

// Stats summarizes a Flush.
type Stats struct {
	Attempted int
	Failed    int
}

// Succeeded returns the number of operations that were applied.
func (s Stats) Succeeded() int { return s.Attempted - s.Failed }

// Add folds o into s.
func (s *Stats) Add(o Stats) {
	s.Attempted += o.Attempted
	s.Failed += o.Failed
}

// Writer queues write models per collection. It is not safe for
// concurrent use; create one per unit of work.
type Writer struct {
	log       *zap.Logger
	batchSize int
	order     []*mongo.Collection
	pending   map[*mongo.Collection][]mongo.WriteModel
}

// New creates a Writer that logs failures to logger.
func New(logger *zap.Logger) *Writer {
	return &Writer{
		log:       logger,
		batchSize: DefaultBatchSize,
		pending:   make(map[*mongo.Collection][]mongo.WriteModel),
	}
}

// WithBatchSize overrides DefaultBatchSize. Values below 1 are ignored.
func (w *Writer) WithBatchSize(n int) *Writer {
	if n > 0 {
		w.batchSize = n
	}
	return w
}

// Add queues a write against coll.
func (w *Writer) Add(coll *mongo.Collection, model mongo.WriteModel) {
	if _, ok := w.pending[coll]; !ok {
		w.order = append(w.order, coll)
	}
	w.pending[coll] = append(w.pending[coll], model)
}

// Len returns the number of queued writes.
func (w *Writer) Len() int {
	n := 0
	for _, models := range w.pending {
		n += len(models)
	}
	return n
}

// Flush sends every queued write and empties the queue. It returns an
// error only when ctx is done; per-write failures are counted in Stats.
func (w *Writer) Flush(ctx context.Context) (Stats, error) {
	var total Stats
	opts := options.BulkWrite().SetOrdered(false)

	for _, coll := range w.order {
		models := w.pending[coll]
		for start := 0; start < len(models); start += w.batchSize {
			if err := ctx.Err(); err != nil {
				w.reset()
				return total, err
			}
			end := min(start+w.batchSize, len(models))
			chunk := models[start:end]

			_, err := coll.BulkWrite(ctx, chunk, opts)
			st := Stats{Attempted: len(chunk)}
			if err != nil {
				var bwe mongo.BulkWriteException
				if errors.As(err, &bwe) && bwe.WriteConcernError == nil {
					st.Failed = len(bwe.WriteErrors)
				} else {
					st.Failed = len(chunk)
				}
				if w.log != nil {
					w.log.Warn("bulk write partially failed",
						zap.String("collection", coll.Name()),
						zap.Int("attempted", st.Attempted),
						zap.Int("failed", st.Failed),
						zap.Error(err))
				}
			}
			total.Add(st)
		}
	}

	w.reset()
	return total, nil
}

func (w *Writer) reset() {
	w.order = nil
	w.pending = make(map[*mongo.Collection][]mongo.WriteModel)
}
