package resources

import (
	"time"

	"github.com/itisfoundation/osparc-tables/internal/config"
	"github.com/itisfoundation/osparc-tables/internal/events"
	"github.com/itisfoundation/osparc-tables/internal/logging"
	"github.com/itisfoundation/osparc-tables/internal/rows"
	"github.com/itisfoundation/osparc-tables/internal/table"
)

// Build creates the row source of a resource using the paging and display
// settings of cfg.
func Build(d Definition, lister rows.Lister, cfg *config.Config, logger *logging.Logger) (*rows.Source, error) {
	return rows.NewSource(lister, rows.SourceOptions{
		Path:           d.Path,
		Columns:        d.Columns,
		Formatter:      rows.Formatter{DateLayout: cfg.DateLayout, Location: time.Local},
		ServerMaxLimit: cfg.ServerMaxLimit,
		Concurrency:    cfg.PageConcurrency,
		Logger:         logger,
	})
}

// TableOptions are the per-table settings on top of the resource defaults.
type TableOptions struct {
	Scope    map[string]string
	Filters  rows.Filters
	EventBus *events.EventBus
	Logger   *logging.Logger
}

// NewTable builds the source of d and wraps it in a table model ordered by
// the resource's default sort.
func NewTable(d Definition, lister rows.Lister, cfg *config.Config, opts TableOptions) (*table.Model, error) {
	src, err := Build(d, lister, cfg, opts.Logger)
	if err != nil {
		return nil, err
	}
	return table.NewModel(src, table.Options{
		Resource:  d.Name,
		CacheRows: cfg.CacheRows,
		Filters:   opts.Filters,
		OrderBy:   d.OrderBy(),
		Scope:     opts.Scope,
		EventBus:  opts.EventBus,
		Logger:    opts.Logger,
	}), nil
}
