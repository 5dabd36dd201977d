package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventTableCount)

	bus.Publish(&TableEvent{
		BaseEvent:  BaseEvent{EventType: EventTableCount, Time: time.Now()},
		Resource:   "usage",
		Generation: 3,
		Total:      120,
		Known:      true,
	})

	select {
	case received := <-ch:
		ev, ok := received.(*TableEvent)
		if !ok {
			t.Fatal("Expected TableEvent")
		}
		if ev.Resource != "usage" || ev.Total != 120 || ev.Generation != 3 {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	rowsCh := bus.Subscribe(EventTableRows)
	filterCh := bus.Subscribe(EventFilterChanged)

	bus.Publish(&TableEvent{
		BaseEvent: BaseEvent{EventType: EventTableRows, Time: time.Now()},
		Rows:      49,
	})

	select {
	case <-rowsCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("Rows subscriber didn't receive event")
	}

	select {
	case <-filterCh:
		t.Error("Filter subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.Publish(&TableEvent{BaseEvent: BaseEvent{EventType: EventTableInvalidated, Time: time.Now()}})
	bus.Publish(&FilterChangedEvent{BaseEvent: BaseEvent{EventType: EventFilterChanged, Time: time.Now()}})

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	ch := bus.Subscribe(EventTableRows)

	for i := 0; i < 10; i++ {
		bus.Publish(&TableEvent{BaseEvent: BaseEvent{EventType: EventTableRows, Time: time.Now()}})
	}

	if got := bus.GetDroppedEventCount(); got != 8 {
		t.Errorf("dropped = %d, want 8", got)
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			goto done
		}
	}
done:

	if count != 2 {
		t.Errorf("received %d events, want 2", count)
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventLog)
	bus.Unsubscribe(EventLog, ch)

	bus.PublishLog(InfoLevel, "after unsubscribe", "test", nil)

	select {
	case <-ch:
		t.Error("unsubscribed channel received an event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventLog)

	bus.Close()

	_, ok := <-ch
	if ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.PublishLog(ErrorLevel, "late", "test", errors.New("boom"))

	late := bus.Subscribe(EventLog)
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestLogLevel_StringAndParse(t *testing.T) {
	tests := []struct {
		level    LogLevel
		name     string
		expected string
	}{
		{DebugLevel, "debug", "DEBUG"},
		{InfoLevel, "info", "INFO"},
		{WarnLevel, "warn", "WARN"},
		{ErrorLevel, "error", "ERROR"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level %d: expected %s, got %s", tt.level, tt.expected, got)
		}
		if got := ParseLogLevel(tt.name); got != tt.level {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.name, got, tt.level)
		}
	}

	if got := ParseLogLevel("nonsense"); got != InfoLevel {
		t.Errorf("ParseLogLevel(nonsense) = %v, want INFO", got)
	}
}
