package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	apphttp "github.com/itisfoundation/osparc-tables/internal/http"
	"github.com/itisfoundation/osparc-tables/internal/logging"
	"github.com/itisfoundation/osparc-tables/internal/progress"
	"github.com/itisfoundation/osparc-tables/internal/rows"
	"github.com/itisfoundation/osparc-tables/internal/table"
)

// Sentinel errors
var (
	ErrCountUnknown    = errors.New("row count unavailable")
	ErrCriteriaChanged = errors.New("table criteria changed during export")
)

// Table is what an export reads. *table.Model implements it.
type Table interface {
	Resource() string
	Columns() []rows.ColumnSpec
	Generation() uint64
	LoadCount(ctx context.Context) table.Count
	Rows(ctx context.Context, first, last int) table.Window
}

// Options configures an export.
type Options struct {
	Format Format
	Plain  bool // strip status/link markup
	Window int  // rows per model request

	Retry    apphttp.RetryConfig
	Progress progress.Reporter
	Logger   *logging.Logger
}

// Result summarizes a finished export.
type Result struct {
	Resource    string
	Destination string
	Rows        int
	Bytes       int
	Duration    time.Duration
}

// Run reads every row of t, count first, and stores the encoding in sink.
// The export fails if t is invalidated before the last window arrives.
// Uploads are retried per opts.Retry; row loading is not.
func Run(ctx context.Context, t Table, sink Sink, opts Options) (*Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.Component("export")
	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.NewNoOpProgress()
	}
	window := opts.Window
	if window <= 0 {
		window = 196
	}

	data, n, err := encodeAll(ctx, t, opts.Format, opts.Plain, window, reporter)
	if err != nil {
		reporter.Error(err)
		return nil, err
	}

	reporter.SetDescription("uploading")
	retry := opts.Retry
	retry.OnRetry = func(attempt int, err error, errType apphttp.ErrorType) {
		logger.Warn().Err(err).
			Str("resource", t.Resource()).
			Str("destination", sink.String()).
			Int("attempt", attempt).
			Str("error_type", apphttp.ErrorTypeName(errType)).
			Msg("retrying export upload")
	}
	if err := apphttp.ExecuteWithRetry(ctx, retry, func() error {
		return sink.Put(ctx, data, opts.Format.ContentType())
	}); err != nil {
		reporter.Error(err)
		return nil, err
	}
	reporter.Finish()

	res := &Result{
		Resource:    t.Resource(),
		Destination: sink.String(),
		Rows:        n,
		Bytes:       len(data),
		Duration:    time.Since(start),
	}
	logger.Info().
		Str("resource", res.Resource).
		Str("destination", res.Destination).
		Int("rows", res.Rows).
		Int("bytes", res.Bytes).
		Dur("duration", res.Duration).
		Msg("export complete")
	return res, nil
}

func encodeAll(ctx context.Context, t Table, format Format, plain bool, window int, reporter progress.Reporter) ([]byte, int, error) {
	gen := t.Generation()
	count := t.LoadCount(ctx)
	switch {
	case count.Stale || t.Generation() != gen:
		return nil, 0, ErrCriteriaChanged
	case !count.Known:
		return nil, 0, fmt.Errorf("%w: %v", ErrCountUnknown, count.Err)
	}
	reporter.Start(int64(count.N), t.Resource())

	var buf bytes.Buffer
	enc, err := NewEncoder(format, &buf, t.Columns(), plain)
	if err != nil {
		return nil, 0, err
	}

	written := 0
	for first := 0; first < count.N; first += window {
		w := t.Rows(ctx, first, first+window-1)
		switch {
		case w.Stale || t.Generation() != gen:
			return nil, written, ErrCriteriaChanged
		case w.Err != nil:
			return nil, written, fmt.Errorf("rows %d-%d: %w", first, first+window-1, w.Err)
		}
		if err := enc.Write(w.Rows); err != nil {
			return nil, written, err
		}
		written += len(w.Rows)
		reporter.Update(int64(written))
		if len(w.Rows) < window {
			break
		}
	}
	if err := enc.Close(); err != nil {
		return nil, written, err
	}
	return buf.Bytes(), written, nil
}
