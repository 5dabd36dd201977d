package filters

import "github.com/itisfoundation/osparc-tables/internal/rows"

// FilterSetter is implemented by *table.Model.
type FilterSetter interface {
	SetFilters(rows.Filters) bool
}

// Mapper turns the merged state of a group into request filters.
type Mapper func(values map[string]interface{}) rows.Filters

// Bind applies every published state of groupID to target through mapper.
// A nil mapper passes the values through, dropping nil and "" values.
func Bind(ctrl *Controller, groupID string, target FilterSetter, mapper Mapper) (unsubscribe func()) {
	if mapper == nil {
		mapper = PassThrough
	}
	return ctrl.Subscribe(groupID, func(_ string, values map[string]interface{}) {
		target.SetFilters(mapper(values))
	})
}

// PassThrough maps every non-empty value to a filter of the same key.
func PassThrough(values map[string]interface{}) rows.Filters {
	out := rows.Filters{}
	for k, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// DateRange maps the "from" and "to" values of a group to a range filter on
// field, e.g. {"started_at": {"from": ..., "to": ...}}. Empty bounds are
// left out; with neither bound set no filter is produced.
func DateRange(field string) Mapper {
	return func(values map[string]interface{}) rows.Filters {
		rng := map[string]interface{}{}
		for _, key := range []string{"from", "to"} {
			if s, ok := values[key].(string); ok && s != "" {
				rng[key] = s
			}
		}
		if len(rng) == 0 {
			return rows.Filters{}
		}
		return rows.Filters{field: rng}
	}
}
