package rows

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/itisfoundation/osparc-tables/internal/api"
	"github.com/itisfoundation/osparc-tables/internal/constants"
	"github.com/itisfoundation/osparc-tables/internal/logging"
)

// Lister fetches one page of a list endpoint. *api.Client implements it.
type Lister interface {
	List(ctx context.Context, path string, q api.ListQuery) (*api.ListPage, error)
}

// SourceOptions configures NewSource.
type SourceOptions struct {
	// Path is the list endpoint, with {placeholders} filled from Criteria.Scope.
	Path string

	Columns   []ColumnSpec
	Formatter Formatter

	// ServerMaxLimit caps every page request (default constants.ServerMaxLimit).
	ServerMaxLimit int

	// Concurrency caps page requests in flight per range (0 = no cap).
	Concurrency int

	Logger *logging.Logger
}

// Source is the remote row source of one resource. It is stateless apart
// from its configuration and safe for concurrent use.
type Source struct {
	lister      Lister
	path        string
	columns     []ColumnSpec
	formatter   Formatter
	limit       int
	concurrency int
	logger      *logging.Logger
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// NewSource creates a Source over lister.
func NewSource(lister Lister, opts SourceOptions) (*Source, error) {
	if lister == nil {
		return nil, fmt.Errorf("rows: nil lister")
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("rows: empty path")
	}
	if len(opts.Columns) == 0 {
		return nil, fmt.Errorf("rows: no columns for %s", opts.Path)
	}

	limit := opts.ServerMaxLimit
	if limit <= 0 || limit > constants.ServerMaxLimit {
		limit = constants.ServerMaxLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	columns := make([]ColumnSpec, len(opts.Columns))
	copy(columns, opts.Columns)

	return &Source{
		lister:      lister,
		path:        opts.Path,
		columns:     columns,
		formatter:   opts.Formatter,
		limit:       limit,
		concurrency: opts.Concurrency,
		logger:      logger,
	}, nil
}

// Columns returns a copy of the column list.
func (s *Source) Columns() []ColumnSpec {
	out := make([]ColumnSpec, len(s.columns))
	copy(out, s.columns)
	return out
}

// Limit returns the maximum page size used for requests.
func (s *Source) Limit() int {
	return s.limit
}

// Concurrency returns the cap on page requests in flight per range.
func (s *Source) Concurrency() int {
	return s.concurrency
}

// Placeholders returns the scope keys the path requires.
func (s *Source) Placeholders() []string {
	var keys []string
	for _, m := range placeholderRe.FindAllStringSubmatch(s.path, -1) {
		keys = append(keys, m[1])
	}
	return keys
}

// ResolvePath fills the path placeholders from scope.
func (s *Source) ResolvePath(scope map[string]string) (string, error) {
	var missing string
	resolved := placeholderRe.ReplaceAllStringFunc(s.path, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := scope[key]
		if !ok || v == "" {
			if missing == "" {
				missing = key
			}
			return m
		}
		return url.PathEscape(v)
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %s", ErrMissingScope, missing)
	}
	return resolved, nil
}

func (s *Source) query(c Criteria, offset, limit int) (api.ListQuery, error) {
	filters, err := c.Filters.Encode()
	if err != nil {
		return api.ListQuery{}, err
	}
	return api.ListQuery{
		Offset:  offset,
		Limit:   limit,
		Filters: filters,
		OrderBy: c.OrderBy.Encode(),
	}, nil
}

// LoadCount probes the endpoint with limit=1, offset=0 under c and returns
// the server-reported total.
func (s *Source) LoadCount(ctx context.Context, c Criteria) (int, error) {
	path, err := s.ResolvePath(c.Scope)
	if err != nil {
		return 0, err
	}
	q, err := s.query(c, 0, constants.CountProbeLimit)
	if err != nil {
		return 0, err
	}

	page, err := s.lister.List(ctx, path, q)
	if err != nil {
		return 0, fmt.Errorf("load count: %w", err)
	}
	return page.Meta.Total, nil
}

// LoadRange returns rows [first, last] under c in ascending order. Fewer rows
// come back only when the server has fewer. Any failing page fails the range,
// as does a page short of its limit that is not at the end of the data
// (ErrShortPage).
func (s *Source) LoadRange(ctx context.Context, first, last int, c Criteria) ([]Row, error) {
	path, err := s.ResolvePath(c.Scope)
	if err != nil {
		return nil, err
	}
	reqs, err := Split(first, last, s.limit)
	if err != nil {
		return nil, err
	}
	if _, err := s.query(c, 0, 0); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("path", path).
		Int("first", first).
		Int("last", last).
		Int("pages", len(reqs)).
		Msg("loading range")

	// Each request fills its own slot, so no locking is needed.
	sizes := make([]int, len(reqs))
	out, err := FetchRange(ctx, reqs, s.concurrency, func(ctx context.Context, req PageRequest) ([]Row, error) {
		q, _ := s.query(c, req.Offset, req.Limit)
		page, err := s.lister.List(ctx, path, q)
		if err != nil {
			return nil, err
		}

		records := page.Data
		if len(records) > req.Limit {
			records = records[:req.Limit]
		}
		if len(records) < req.Limit && req.Offset+len(records) < page.Meta.Total {
			return nil, fmt.Errorf("%w: offset %d returned %d of %d rows, total %d",
				ErrShortPage, req.Offset, len(records), req.Limit, page.Meta.Total)
		}
		sizes[(req.Offset-first)/s.limit] = len(records)

		result := make([]Row, 0, len(records))
		for _, rec := range records {
			result = append(result, s.formatter.Transform(s.columns, rec))
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	// Rows after a short page would land at the wrong index.
	short := -1
	for i := range reqs {
		if short >= 0 && sizes[i] > 0 {
			return nil, fmt.Errorf("%w: offset %d returned %d of %d rows before a non-empty page",
				ErrShortPage, reqs[short].Offset, sizes[short], reqs[short].Limit)
		}
		if short < 0 && sizes[i] < reqs[i].Limit {
			short = i
		}
	}
	return out, nil
}
