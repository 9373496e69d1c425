// Package logging renders log lines in the Apache errorlog format that the
// CGI deployment expects:
//
//	[Mon Jan 02 15:04:05.000000 2006] [ts2cast:info] [pid 1234] message
//
// A plain format (message only) is selectable for interactive use.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

const timeLayout = "Mon Jan 02 15:04:05.000000 2006"

var plain atomic.Bool

// SetPlain switches off the Apache-style prefix.
func SetPlain(v bool) {
	plain.Store(v)
}

// Printf writes one log line to stderr. A trailing newline is added when the
// format does not already end in one.
func Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	if plain.Load() {
		fmt.Fprint(os.Stderr, msg)
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] [ts2cast:info] [pid %d] %s",
		time.Now().Format(timeLayout), os.Getpid(), msg)
}
