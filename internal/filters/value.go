package filters

import "sync"

// ValueFilter is a filter holding a single value with a default.
type ValueFilter struct {
	groupID  string
	filterID string
	def      interface{}
	ctrl     *Controller

	mu    sync.Mutex
	value interface{}
}

// NewValueFilter creates a filter, registers it with ctrl and starts it at def.
// Nothing is published until Set or Reset is called.
func NewValueFilter(ctrl *Controller, groupID, filterID string, def interface{}) *ValueFilter {
	f := &ValueFilter{
		groupID:  groupID,
		filterID: filterID,
		def:      def,
		ctrl:     ctrl,
		value:    def,
	}
	ctrl.RegisterFilter(f)
	return f
}

func (f *ValueFilter) GroupID() string  { return f.groupID }
func (f *ValueFilter) FilterID() string { return f.filterID }

// Value returns the current value.
func (f *ValueFilter) Value() interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set stores v and publishes it.
func (f *ValueFilter) Set(v interface{}) error {
	f.mu.Lock()
	f.value = v
	f.mu.Unlock()
	return f.ctrl.Publish(FilterData{GroupID: f.groupID, FilterID: f.filterID, Value: v})
}

// Reset restores the default and publishes it.
func (f *ValueFilter) Reset() {
	_ = f.Set(f.def)
}
