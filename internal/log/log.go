// Package log configures apex/log for the gqlcache binary.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// EnvLevel names the environment variable consulted when no level is given.
const EnvLevel = "GQLCACHE_LOG"

// DefaultLevel is used when neither a level nor EnvLevel is set.
const DefaultLevel = "ERROR"

// Init installs a Handler writing to stderr and sets the level. An empty
// level falls back to $GQLCACHE_LOG, then DefaultLevel. An unknown level is
// reported and DefaultLevel is used.
func Init(level string) error {
	log.SetHandler(NewHandler(os.Stderr))
	return SetLevel(level)
}

// SetLevel applies level with the same fallbacks as Init.
func SetLevel(level string) error {
	if level == "" {
		level = os.Getenv(EnvLevel)
	}
	if level == "" {
		level = DefaultLevel
	}
	parsed, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.SetLevel(log.ErrorLevel)
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(parsed)
	return nil
}

// Handler writes one compact line per entry:
//
//	2006-01-02 15:04:05 D message key=value key=value
type Handler struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewHandler creates a Handler writing to w.
func NewHandler(w io.Writer) *Handler {
	return &Handler{w: w, now: time.Now}
}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1s %s", h.now().Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level.String()), e.Message)
	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}
