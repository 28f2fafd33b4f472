package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rowriver/internal/river"
)

// ── Engine ─────────────────────────────────────────────────
// Orchestrates: source.Read → river session → destination sink.

// Engine runs jobs using the registered sources and the configured
// destinations, keyed by sink type.
type Engine struct {
	Destinations map[string]Destination
	Logger       *zap.Logger
	// Observer, when set, builds the observer attached to a job's session.
	Observer func(job *Job) river.Observer
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// RunSync executes a job end-to-end. Rows reach the sink as they are read;
// a failed run keeps whatever was flushed before the failure.
func (e *Engine) RunSync(ctx context.Context, job *Job) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{JobID: job.ID}
	fail := func(stage string, err error) (*SyncResult, error) {
		err = fmt.Errorf("%s: %w", stage, err)
		result.Status = StatusError
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result, err
	}

	// 1. Resolve source, options and destination.
	source, err := GetSource(job.SourceType)
	if err != nil {
		return fail("source", err)
	}
	opts, err := job.Options.SessionOptions()
	if err != nil {
		return fail("options", err)
	}
	dest, ok := e.Destinations[job.SinkType]
	if !ok {
		return fail("sink", fmt.Errorf("unknown sink type: %q", job.SinkType))
	}

	// 2. Open the sink for this run.
	sink, err := dest.Open(ctx, job.SinkConnection, job.Target)
	if err != nil {
		return fail("open sink", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			e.logger().Warn("close sink", zap.String("job", job.Name), zap.Error(err))
		}
	}()

	if e.Observer != nil {
		opts = append(opts, river.WithObserver(e.Observer(job)))
	}
	sess := river.New(sink, opts...)

	// 3. Stream rows through the session.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recCh, errCh := source.Read(readCtx, job.SourceCfg)

	rows, feedErr := feed(ctx, sess, recCh)
	result.RowsRead = rows
	result.Stats = sess.Stats()
	if feedErr != nil {
		cancel()
		drain(recCh)
		return fail("river", feedErr)
	}

	// 4. Check for source errors before flushing the last document.
	if err := <-errCh; err != nil {
		return fail("read", err)
	}
	if err := sess.End(ctx); err != nil {
		result.Stats = sess.Stats()
		return fail("river", err)
	}

	result.Stats = sess.Stats()
	result.Status = StatusSuccess
	result.Duration = time.Since(start)
	e.logger().Info("river run finished",
		zap.String("job", job.Name),
		zap.Int("rows", result.RowsRead),
		zap.Int("documents", result.Stats.Documents),
		zap.Int("suppressed", result.Stats.Suppressed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// feed begins sess and applies every record, using the columns of the first
// record as the header.
func feed(ctx context.Context, sess *river.Session, recCh <-chan Record) (int, error) {
	if err := sess.Begin(); err != nil {
		return 0, err
	}
	rows := 0
	keyed := false
	for rec := range recCh {
		if !keyed {
			if err := sess.Keys(rec.Columns); err != nil {
				return rows, err
			}
			keyed = true
		}
		rows++
		if err := sess.Values(ctx, rec.Values); err != nil {
			return rows, fmt.Errorf("row %d: %w", rows, err)
		}
	}
	return rows, nil
}

func drain(recCh <-chan Record) {
	go func() {
		for range recCh {
		}
	}()
}

// errPreviewFull stops a preview once enough documents were produced.
var errPreviewFull = errors.New("preview full")

// previewSink records documents and refuses more than max.
type previewSink struct {
	river.RecordingSink
	max int
}

func (p *previewSink) full() error {
	if len(p.Calls) >= p.max {
		return errPreviewFull
	}
	return nil
}

func (p *previewSink) Create(ctx context.Context, id string, doc *river.Node) error {
	if err := p.full(); err != nil {
		return err
	}
	return p.RecordingSink.Create(ctx, id, doc)
}

func (p *previewSink) Index(ctx context.Context, id string, doc *river.Node) error {
	if err := p.full(); err != nil {
		return err
	}
	return p.RecordingSink.Index(ctx, id, doc)
}

func (p *previewSink) Delete(ctx context.Context, id string) error {
	if err := p.full(); err != nil {
		return err
	}
	return p.RecordingSink.Delete(ctx, id)
}

// PreviewResult holds the first documents a river would produce.
type PreviewResult struct {
	Header    []string         `json:"header"`
	Documents []river.SinkCall `json:"documents"`
	RowsRead  int              `json:"rowsRead"`
	Truncated bool             `json:"truncated"`
}

// Preview runs the source through a session into memory and returns up to
// maxDocs sink calls. Nothing is written anywhere.
func (e *Engine) Preview(ctx context.Context, sourceType string, cfg SourceConfig, options RiverOptions, maxDocs int) (*PreviewResult, error) {
	source, err := GetSource(sourceType)
	if err != nil {
		return nil, err
	}
	opts, err := options.SessionOptions()
	if err != nil {
		return nil, err
	}
	if maxDocs <= 0 {
		maxDocs = 10
	}

	sink := &previewSink{max: maxDocs}
	sess := river.New(sink, opts...)

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recCh, errCh := source.Read(readCtx, cfg)

	res := &PreviewResult{}
	rows, feedErr := feed(ctx, sess, recCh)
	res.RowsRead = rows
	res.Header = sess.Header()

	switch {
	case errors.Is(feedErr, errPreviewFull):
		cancel()
		drain(recCh)
		res.Truncated = true
	case feedErr != nil:
		cancel()
		drain(recCh)
		return nil, feedErr
	default:
		if err := <-errCh; err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		if err := sess.End(ctx); err != nil {
			if !errors.Is(err, errPreviewFull) {
				return nil, err
			}
			res.Truncated = true
		}
	}
	res.Documents = sink.Calls
	return res, nil
}
