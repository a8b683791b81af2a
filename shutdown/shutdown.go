// Package shutdown ties process lifetime to termination signals.
package shutdown

import (
	"context"
	"os"
	"os/signal"
)

// Context returns a context cancelled on the first termination signal.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

func Notify(ch chan os.Signal) {
	signal.Notify(ch, signals...)
}
