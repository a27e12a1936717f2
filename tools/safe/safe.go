package safe

import (
	"RTChat/logger"

	"go.uber.org/zap"
)

// Go starts a goroutine that recovers from panic, so a single bad handler
// cannot take down the gateway.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panic recovered", zap.Any("panic", r))
			}
		}()
		f()
	}()
}

// Recover is the deferred form, for goroutines owned by the caller.
func Recover(where string) {
	if r := recover(); r != nil {
		logger.Error("panic recovered", zap.String("where", where), zap.Any("panic", r))
	}
}
