package ami

import (
	"log"
	"os"
)

// Logger is the minimal logging surface Connection needs, satisfied
// directly by *log.Logger. It exists only so a caller can route
// connection diagnostics into their own logger via WithLogger.
type Logger interface {
	Printf(format string, v ...interface{})
}

var defaultLogger Logger = log.New(os.Stderr, "", log.LstdFlags)
