package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Op is the mutation that caused an invalidation.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Event announces that every cached list under QueryKey is stale.
type Event struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurredAt"`
	QueryKey   string    `json:"queryKey"`
	Entity     string    `json:"entity"`
	Op         Op        `json:"op"`
	ItemID     string    `json:"itemId,omitempty"`
	ParentID   string    `json:"parentId,omitempty"`
}

// NewInvalidated builds an invalidation event.
func NewInvalidated(queryKey, entity string, op Op, itemID, parentID string) Event {
	return Event{
		ID:         uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		QueryKey:   queryKey,
		Entity:     entity,
		Op:         op,
		ItemID:     itemID,
		ParentID:   parentID,
	}
}
