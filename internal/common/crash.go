// -----------------------------------------------------------------------
// Crash reports - last words of a process that panicked outside a supervisor
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"
)

// maxStackBuffer bounds the all-goroutine dump
const maxStackBuffer = 64 << 20

// WriteCrashFile writes a crash report into dir and returns its path.
// The report is also echoed to stderr when the file cannot be written.
func WriteCrashFile(dir string, panicVal interface{}, stack string, now time.Time) (string, error) {
	var report bytes.Buffer
	fmt.Fprintf(&report, "overseer crash at %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&report, "version: %s\n", GetFullVersion())
	fmt.Fprintf(&report, "panic: %v\n\n", panicVal)
	fmt.Fprintf(&report, "--- stack ---\n%s\n", stack)
	fmt.Fprintf(&report, "--- goroutines (%d, %d via SafeGo) ---\n%s\n", runtime.NumGoroutine(), GetGoroutineCount(), allGoroutineStacks())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Fprintf(&report, "--- memory ---\nalloc=%dMB sys=%dMB gc=%d\n", mem.Alloc>>20, mem.Sys>>20, mem.NumGC)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		os.Stderr.Write(report.Bytes())
		return "", fmt.Errorf("failed to create crash dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))
	if err := os.WriteFile(path, report.Bytes(), 0o644); err != nil {
		os.Stderr.Write(report.Bytes())
		return "", fmt.Errorf("failed to write crash file: %w", err)
	}
	return path, nil
}

func allGoroutineStacks() string {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= maxStackBuffer {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// RecoverWithCrashFile is deferred at the top of main. It writes a crash report to dir and exits.
func RecoverWithCrashFile(dir string) {
	if r := recover(); r != nil {
		path, err := WriteCrashFile(dir, r, string(debug.Stack()), time.Now())
		if err == nil {
			fmt.Fprintf(os.Stderr, "\nFATAL: %v (report: %s)\n", r, path)
		}
		os.Exit(1)
	}
}
