package table

// State is the loading state of a table model. There is no terminal state:
// every invalidation starts the cycle again.
//
//	Idle -> Invalidated -> CountLoading -> RowsLoading -> Idle
type State int

const (
	// Idle: criteria stable, cached rows valid.
	Idle State = iota
	// Invalidated: criteria changed, cache cleared, count not yet requested.
	Invalidated
	// CountLoading: the limit=1 probe for the current generation is in flight.
	CountLoading
	// RowsLoading: a row range is in flight or due right after the count.
	RowsLoading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Invalidated:
		return "invalidated"
	case CountLoading:
		return "count_loading"
	case RowsLoading:
		return "rows_loading"
	default:
		return "unknown"
	}
}
