// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// PanicError carries a recovered panic value and the stack it was raised on
type PanicError struct {
	Name  string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged but don't crash the service.
//
// Example:
//
//	common.SafeGo(logger, "publishEvent", func() {
//	    eventService.Publish(ctx, event)
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		if err := SafeCall(name, func() error {
			fn()
			return nil
		}); err != nil {
			logPanic(logger, err)
		}
	}()
}

// SafeCall runs fn on the calling goroutine and converts a panic into a *PanicError
func SafeCall(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = &PanicError{Name: name, Value: r, Stack: string(buf[:n])}
		}
	}()
	return fn()
}

func logPanic(logger arbor.ILogger, err error) {
	pe, ok := err.(*PanicError)
	if !ok {
		return
	}
	if logger != nil {
		logger.Error().
			Str("goroutine", pe.Name).
			Str("panic", fmt.Sprintf("%v", pe.Value)).
			Str("stack", pe.Stack).
			Msg("Recovered from panic in goroutine - continuing service operation")
		return
	}
	fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", pe.Name, pe.Value, pe.Stack)
}
