// Package notify delivers user-facing status messages.
package notify

import (
	"sync"

	"github.com/gen2brain/beeep"

	"whisperkey/log"
)

// Desktop shows messages as desktop notifications and logs each one.
type Desktop struct {
	enabled bool
}

func NewDesktop(enabled bool) *Desktop {
	return &Desktop{enabled: enabled}
}

func (d *Desktop) Notify(title, message string) {
	log.Infof("%s: %s", title, message)
	if !d.enabled {
		return
	}
	if err := beeep.Notify(title, message, ""); err != nil {
		log.Debugf("desktop notification failed: %v", err)
	}
}

// Func adapts a function to the Notifier interface.
type Func func(title, message string)

func (f Func) Notify(title, message string) { f(title, message) }

type notifier interface {
	Notify(title, message string)
}

// Multi fans every message out to each notifier in order.
func Multi(ns ...notifier) Func {
	return func(title, message string) {
		for _, n := range ns {
			if n != nil {
				n.Notify(title, message)
			}
		}
	}
}

// Recorder keeps messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Notify(_, message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
