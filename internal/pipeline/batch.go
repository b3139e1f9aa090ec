package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/watershed-cli/internal/model"
)

// BatchResult is the outcome of one batch, with every slice in input order.
type BatchResult struct {
	Method    string                     `json:"method"`
	Total     int                        `json:"total"`
	Resolved  []model.Dam                `json:"resolved"`
	Snapped   []model.SnappedPointRecord `json:"snapped_points"`
	Ancestors []model.AncestorSetRecord  `json:"ancestor_sets"`
	Failures  []model.FailureRecord      `json:"failures"`
	Duration  time.Duration              `json:"duration"`
}

// Succeeded returns the number of dams that passed every stage.
func (r *BatchResult) Succeeded() int { return len(r.Resolved) }

// Failed returns the number of dams that failed a stage.
func (r *BatchResult) Failed() int { return len(r.Failures) }

type outcome struct {
	index int
	dam   model.Dam
	err   error
}

// Run resolves dams concurrently. A dam failing a stage becomes a failure
// record and never stops the batch; Run returns an error only when ctx is
// cancelled or a sink fails.
func (o *Orchestrator) Run(ctx context.Context, dams []model.Dam) (*BatchResult, error) {
	start := time.Now()
	log := zap.L().With(
		zap.String("method", o.cfg.Method.String()),
		zap.Int("dams", len(dams)),
		zap.Int("concurrency", o.cfg.Concurrency),
	)
	log.Info("pipeline: batch starting")

	outcomes := make(chan outcome)
	collected := make(chan *BatchResult, 1)
	go func() {
		collected <- o.collect(len(dams), outcomes)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, d := range dams {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o.metrics.WorkerStarted()
			defer o.metrics.WorkerDone()

			res, err := o.ResolveDam(gctx, d)
			if cerr := gctx.Err(); cerr != nil && err != nil {
				return cerr
			}
			select {
			case outcomes <- outcome{index: i, dam: res, err: err}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	err := g.Wait()
	close(outcomes)
	result := <-collected
	result.Duration = time.Since(start)
	o.metrics.RecordBatch(result.Duration)

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		log.Warn("pipeline: batch cancelled",
			zap.Int("succeeded", result.Succeeded()),
			zap.Int("failed", result.Failed()),
			zap.Error(err),
		)
		return result, eris.Wrap(err, "pipeline: batch cancelled")
	}

	for _, s := range o.sinks {
		if err := s.Write(ctx, result); err != nil {
			return result, eris.Wrapf(err, "pipeline: sink %s", s.Name())
		}
	}

	log.Info("pipeline: batch complete",
		zap.Int("succeeded", result.Succeeded()),
		zap.Int("failed", result.Failed()),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// collect is the only reader of outcomes and the only writer of the batch
// partition.
func (o *Orchestrator) collect(n int, in <-chan outcome) *BatchResult {
	slots := make([]*outcome, n)
	for oc := range in {
		slots[oc.index] = &oc
	}

	method := o.cfg.Method.String()
	result := &BatchResult{Method: method, Total: n}
	for _, oc := range slots {
		if oc == nil {
			continue
		}
		if oc.err != nil {
			result.Failures = append(result.Failures, failureRecord(oc.dam.ID, oc.err))
			o.metrics.RecordDam(method, false)
			zap.L().Info("pipeline: dam failed",
				zap.String("dam_id", oc.dam.ID),
				zap.String("kind", model.ErrorKind(oc.err)),
				zap.Error(oc.err),
			)
			continue
		}
		result.Resolved = append(result.Resolved, oc.dam)
		result.Snapped = append(result.Snapped, model.NewSnappedPointRecord(oc.dam))
		result.Ancestors = append(result.Ancestors, model.NewAncestorSetRecord(oc.dam))
		o.metrics.RecordDam(method, true)
	}
	return result
}

func failureRecord(damID string, err error) model.FailureRecord {
	rec := model.FailureRecord{DamID: damID, Reason: err.Error()}
	var se *model.StageError
	if errors.As(err, &se) {
		rec.Stage = se.Stage
		rec.Reason = se.Err.Error()
	}
	return rec
}
