package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/itisfoundation/osparc-tables/internal/api"
	"github.com/itisfoundation/osparc-tables/internal/config"
	"github.com/itisfoundation/osparc-tables/internal/filters"
	"github.com/itisfoundation/osparc-tables/internal/resources"
	"github.com/itisfoundation/osparc-tables/internal/rows"
	"github.com/itisfoundation/osparc-tables/internal/table"
)

// getAPIClient validates cfg for a connection and creates an API client.
func getAPIClient(cfg *config.Config) (*api.Client, error) {
	if err := cfg.ValidateForConnection(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	client, err := api.NewClient(cfg, GetLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// loadCatalog returns the built-in resources merged with cfg.DefsFile.
func loadCatalog(cfg *config.Config) (*resources.Catalog, error) {
	if cfg.DefsFile != "" {
		return resources.Load(cfg.DefsFile)
	}
	return resources.Builtin()
}

// tableFlags are the selection flags shared by count, list and export.
type tableFlags struct {
	scope map[string]string
	from  string
	to    string
}

// session is an opened table plus what it was built from.
type session struct {
	cfg    *config.Config
	client *api.Client
	def    resources.Definition
	model  *table.Model
	ctrl   *filters.Controller
}

func (s *session) Close() {
	s.ctrl.Close()
	s.model.Close()
}

const dateGroup = "dates"

// openTable builds the table model of resource with the scope and date
// range of tf. A missing walletId scope defaults to the user's default
// wallet.
func openTable(ctx context.Context, resource string, tf tableFlags) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	def, err := catalog.Get(resource)
	if err != nil {
		return nil, err
	}
	client, err := getAPIClient(cfg)
	if err != nil {
		return nil, err
	}

	scope := make(map[string]string, len(tf.scope))
	for k, v := range tf.scope {
		scope[k] = v
	}
	for _, key := range def.Scope {
		if scope[key] != "" {
			continue
		}
		if key != "walletId" {
			return nil, fmt.Errorf("resource %s needs --scope %s=<value>", def.Name, key)
		}
		wallet, err := client.GetDefaultWallet(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default wallet: %w", err)
		}
		scope[key] = strconv.Itoa(wallet.WalletID)
		GetLogger().Debug().Int("wallet_id", wallet.WalletID).Msg("using default wallet")
	}

	model, err := resources.NewTable(def, client, cfg, resources.TableOptions{
		Scope:  scope,
		Logger: GetLogger(),
	})
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, client: client, def: def, model: model,
		ctrl: filters.NewController(nil, GetLogger())}
	if err := s.applyDates(tf.from, tf.to); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// applyDates routes --from/--to through a filter group bound to the model.
func (s *session) applyDates(from, to string) error {
	if from == "" && to == "" {
		return nil
	}
	if s.def.DateField == "" {
		return fmt.Errorf("resource %s has no date filter", s.def.Name)
	}
	filters.Bind(s.ctrl, dateGroup, s.model, filters.DateRange(s.def.DateField))
	fromFilter := filters.NewValueFilter(s.ctrl, dateGroup, "from", "")
	toFilter := filters.NewValueFilter(s.ctrl, dateGroup, "to", "")
	if err := fromFilter.Set(from); err != nil {
		return err
	}
	return toFilter.Set(to)
}

// sortModel orders m by the column with id col.
func sortModel(m *table.Model, col string, desc bool) error {
	if col == "" {
		return nil
	}
	return m.SortByColumnID(col, !desc)
}

var _ rows.Lister = (*api.Client)(nil)
