package rows

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Split partitions the inclusive row range [first, last] into consecutive
// page requests of at most limit rows. The last request carries whatever
// remains, so a count that is an exact multiple of limit ends in a full page.
func Split(first, last, limit int) ([]PageRequest, error) {
	if first < 0 || last < first || limit <= 0 {
		return nil, fmt.Errorf("%w: [%d, %d] limit %d", ErrInvalidRange, first, last, limit)
	}

	count := last - first + 1
	reqs := make([]PageRequest, 0, (count+limit-1)/limit)
	for requested := 0; requested < count; {
		size := limit
		if remaining := count - requested; remaining < size {
			size = remaining
		}
		reqs = append(reqs, PageRequest{Offset: first + requested, Limit: size})
		requested += size
	}
	return reqs, nil
}

// FetchFunc loads the rows of one page request.
type FetchFunc func(ctx context.Context, req PageRequest) ([]Row, error)

// FetchRange issues all requests concurrently and concatenates their rows in
// request order, whatever order they complete in. concurrency caps the
// requests in flight; zero or less means no cap.
//
// The result is all-or-nothing: the first failing request cancels the
// others and FetchRange returns nil rows with that error.
func FetchRange(ctx context.Context, reqs []PageRequest, concurrency int, fetch FetchFunc) ([]Row, error) {
	if len(reqs) == 0 {
		return []Row{}, nil
	}

	results := make([][]Row, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, req := range reqs {
		g.Go(func() error {
			rows, err := fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("fetch offset %d limit %d: %w", req.Offset, req.Limit, err)
			}
			results[i] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]Row, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
