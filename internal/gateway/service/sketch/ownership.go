package sketch

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"apisketch/internal/gateway/repository/eventlog"
)

// OwnershipChecker decides whether userID may act on sketchID.
type OwnershipChecker interface {
	OwnsSketch(ctx context.Context, userID, sketchID string) (bool, error)
}

// AllowAll grants every request.
type AllowAll struct{}

func (AllowAll) OwnsSketch(context.Context, string, string) (bool, error) {
	return true, nil
}

// LogOwnership treats the author of a sketch's first event as its owner. A
// sketch with no events is open so it can be created.
type LogOwnership struct {
	log    eventlog.Log
	owners *expirable.LRU[string, string]
}

func NewLogOwnership(l eventlog.Log, size int, ttl time.Duration) *LogOwnership {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LogOwnership{
		log:    l,
		owners: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (o *LogOwnership) OwnsSketch(ctx context.Context, userID, sketchID string) (bool, error) {
	sketchID = strings.TrimSpace(sketchID)
	if strings.TrimSpace(userID) == "" || sketchID == "" {
		return false, nil
	}
	if owner, ok := o.owners.Get(sketchID); ok {
		return owner == userID, nil
	}
	events, err := o.log.ReadAll(ctx, sketchID)
	if err != nil {
		return false, storageErr(err)
	}
	if len(events) == 0 {
		return true, nil
	}
	owner := events[0].UserID
	o.owners.Add(sketchID, owner)
	return owner == userID, nil
}

// Forget drops cached ownership decisions.
func (o *LogOwnership) Forget() {
	o.owners.Purge()
}
