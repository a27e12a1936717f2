package chat

import (
	"RTChat/logger"

	"go.uber.org/zap"
)

// deliverTo fans one payload out to the given clients, skipping exclude.
// Enqueues are synchronous and non-blocking so a connection's own handler
// output keeps its generation order; a slow client just drops the frame.
func deliverTo(clients []*Client, payload []byte, exclude string) int {
	if len(clients) == 0 || len(payload) == 0 {
		return 0
	}
	n := 0
	for _, c := range clients {
		if exclude != "" && c.UserID == exclude {
			continue
		}
		switch err := c.Enqueue(payload); err {
		case nil:
			n++
		case ErrSendQueueFull:
			logger.Warn("slow client, frame dropped",
				zap.String("user", c.UserID), zap.String("conn", c.ConnID))
		default:
			// Closed client; its teardown is already in flight.
		}
	}
	return n
}
