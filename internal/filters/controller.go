// Package filters is a session-scoped registry of filter widgets grouped by
// a filter-group id. Filters publish their value to the controller, which
// merges the last value of every filter of the group and hands the merged
// state to the group's subscribers.
package filters

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/itisfoundation/osparc-tables/internal/events"
	"github.com/itisfoundation/osparc-tables/internal/logging"
)

// ChannelPrefix prefixes the broadcast channel name of a group.
const ChannelPrefix = "uiFilterChanged:"

// Sentinel errors
var (
	ErrUnknownContainer = errors.New("unknown container")
	ErrClosed           = errors.New("filter controller closed")
)

// Filter is a filter widget registered with a Controller.
type Filter interface {
	GroupID() string
	FilterID() string
	Reset()
}

// Container is something whose visibility can be toggled by id.
type Container interface {
	SetVisible(visible bool)
}

// FilterData is one published filter value.
type FilterData struct {
	GroupID  string
	FilterID string
	Value    interface{}
}

// Handler receives the merged state of a group after every publish.
type Handler func(groupID string, values map[string]interface{})

// Channel returns the broadcast channel name of a group.
func Channel(groupID string) string {
	return ChannelPrefix + groupID
}

type subscription struct {
	id int
	fn Handler
}

type group struct {
	filters []Filter // registration order
	values  map[string]interface{}
	subs    []subscription
}

// Controller is the filter registry of one session. Safe for concurrent use.
type Controller struct {
	mu         sync.Mutex
	groups     map[string]*group
	containers map[string]Container
	nextSubID  int
	closed     bool

	eventBus *events.EventBus
	logger   *logging.Logger
}

// NewController creates a controller. bus and logger may be nil.
func NewController(bus *events.EventBus, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Controller{
		groups:     make(map[string]*group),
		containers: make(map[string]Container),
		eventBus:   bus,
		logger:     logger.Component("filters"),
	}
}

func (c *Controller) groupLocked(id string) *group {
	g, ok := c.groups[id]
	if !ok {
		g = &group{values: make(map[string]interface{})}
		c.groups[id] = g
	}
	return g
}

// RegisterFilter adds f to its group. Registering a second filter with the
// same group and filter id is ignored and returns false.
func (c *Controller) RegisterFilter(f Filter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	g := c.groupLocked(f.GroupID())
	for _, existing := range g.filters {
		if existing.FilterID() == f.FilterID() {
			return false
		}
	}
	g.filters = append(g.filters, f)
	return true
}

// RegisterContainer associates a container with id, replacing any previous one.
func (c *Controller) RegisterContainer(id string, container Container) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.containers[id] = container
}

// SetContainerVisibility shows or hides the container registered as id.
func (c *Controller) SetContainerVisibility(id string, visible bool) error {
	c.mu.Lock()
	container, ok := c.containers[id]
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContainer, id)
	}
	container.SetVisible(visible)
	return nil
}

// Subscribe registers fn for the merged state of groupID. The returned
// function removes the subscription.
func (c *Controller) Subscribe(groupID string, fn Handler) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return func() {}
	}
	c.nextSubID++
	id := c.nextSubID
	g := c.groupLocked(groupID)
	g.subs = append(g.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			g, ok := c.groups[groupID]
			if !ok {
				return
			}
			for i, s := range g.subs {
				if s.id == id {
					g.subs = append(g.subs[:i], g.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish records data.Value as the filter's last value and dispatches the
// merged group state to every subscriber before returning. Handlers run on
// the caller's goroutine, outside the controller lock.
func (c *Controller) Publish(data FilterData) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	g := c.groupLocked(data.GroupID)
	g.values[data.FilterID] = data.Value
	merged := copyValues(g.values)
	handlers := make([]Handler, len(g.subs))
	for i, s := range g.subs {
		handlers[i] = s.fn
	}
	c.mu.Unlock()

	c.logger.Debug().
		Str("group", data.GroupID).
		Str("filter", data.FilterID).
		Int("subscribers", len(handlers)).
		Msg("filter published")

	for _, fn := range handlers {
		fn(data.GroupID, copyValues(merged))
	}

	if c.eventBus != nil {
		c.eventBus.Publish(&events.FilterChangedEvent{
			BaseEvent: events.BaseEvent{
				EventType: events.EventFilterChanged,
				Time:      time.Now(),
			},
			Channel: Channel(data.GroupID),
			GroupID: data.GroupID,
			Values:  merged,
		})
	}
	return nil
}

// ResetGroup calls Reset on every filter of the group in registration order.
func (c *Controller) ResetGroup(groupID string) {
	c.mu.Lock()
	var filters []Filter
	if g, ok := c.groups[groupID]; ok {
		filters = make([]Filter, len(g.filters))
		copy(filters, g.filters)
	}
	c.mu.Unlock()

	for _, f := range filters {
		f.Reset()
	}
}

// Values returns a copy of the merged state of a group.
func (c *Controller) Values(groupID string) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[groupID]
	if !ok {
		return map[string]interface{}{}
	}
	return copyValues(g.values)
}

// Filters returns the filter ids of a group in registration order.
func (c *Controller) Filters(groupID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[groupID]
	if !ok {
		return nil
	}
	ids := make([]string, len(g.filters))
	for i, f := range g.filters {
		ids[i] = f.FilterID()
	}
	return ids
}

// Close drops every group, subscription and container. Publishing after
// Close returns ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.groups = make(map[string]*group)
	c.containers = make(map[string]Container)
}

func copyValues(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
