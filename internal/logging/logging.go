// Package logging provides debug logging utilities for the telnet
// gateway.
package logging

import "log"

// DebugEnabled controls whether Debug() produces output.
// Set via the DEBUG environment variable.
var DebugEnabled bool

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}
