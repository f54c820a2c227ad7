package lifecycle

import (
	"context"
	"time"
)

// Hook describes a named shutdown hook. A zero Timeout uses the caller's context.
type Hook struct {
	Name    string
	Fn      func(ctx context.Context) error
	Timeout time.Duration
}

// CloseHook adapts a Close method to a hook function.
func CloseHook(closeFn func() error) func(context.Context) error {
	return func(context.Context) error {
		return closeFn()
	}
}
