package table

import (
	"time"

	"github.com/itisfoundation/osparc-tables/internal/events"
)

func newTableEvent(t events.EventType, modelID, resource string, generation uint64) *events.TableEvent {
	return &events.TableEvent{
		BaseEvent: events.BaseEvent{
			EventType: t,
			Time:      time.Now(),
		},
		ModelID:    modelID,
		Resource:   resource,
		Generation: generation,
	}
}
