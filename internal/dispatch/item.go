package dispatch

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danmuck/edgelink/internal/protocol"
)

// Origin records who submitted a request.
type Origin uint8

const (
	// OriginController requests arrived on the transport; their responses are
	// written back to it.
	OriginController Origin = iota
	// OriginLocal requests were queued by the service itself at boot.
	OriginLocal
)

func (o Origin) String() string {
	switch o {
	case OriginController:
		return "controller"
	case OriginLocal:
		return "local"
	default:
		return fmt.Sprintf("origin(%d)", uint8(o))
	}
}

// Item is one accepted request plus its envelope.
type Item struct {
	ID         uuid.UUID
	Request    protocol.Request
	Origin     Origin
	AcceptedAt time.Time
}

func newItem(req protocol.Request, origin Origin, at time.Time) Item {
	return Item{
		ID:         uuid.New(),
		Request:    req,
		Origin:     origin,
		AcceptedAt: at,
	}
}
