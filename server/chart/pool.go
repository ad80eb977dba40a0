package chart

import (
	"context"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Pool runs renders on their own goroutines with at most n in flight. It is
// itself a Renderer.
type Pool struct {
	renderer Renderer
	sem      *semaphore.Weighted
	logger   zerolog.Logger
}

// NewPool wraps r; a non-positive size means one render at a time
func NewPool(r Renderer, size int, logger zerolog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		renderer: r,
		sem:      semaphore.NewWeighted(int64(size)),
		logger:   logger.With().Str("component", "chart_pool").Logger(),
	}
}

type renderResult struct {
	chart *types.ChartResult
	err   error
}

// Render waits for a free slot, then renders off the caller's goroutine. If
// ctx ends first the caller gets the context error; an in-flight render
// still completes and frees its slot.
func (p *Pool) Render(ctx context.Context, rows []types.Row, req types.ChartRequest) (*types.ChartResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(errors.CommonTimeout, err, "timed out waiting for a chart worker")
	}

	done := make(chan renderResult, 1)
	go func() {
		defer p.sem.Release(1)
		chart, err := p.renderer.Render(context.WithoutCancel(ctx), rows, req)
		done <- renderResult{chart: chart, err: err}
	}()

	select {
	case res := <-done:
		return res.chart, res.err
	case <-ctx.Done():
		p.logger.Warn().Err(ctx.Err()).Str("source", req.DataSource).Msg("Chart request abandoned")
		return nil, errors.Wrap(errors.CommonTimeout, ctx.Err(), "chart rendering cancelled")
	}
}
