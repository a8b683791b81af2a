//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// Global hotkeys on macOS and Windows need the main thread.
func main() {
	mainthread.Init(run)
}
