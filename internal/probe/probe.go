// Package probe implements the health probe side channel an external
// supervisor polls for liveness and mode.
//
// A probe is a small line-oriented text artifact. Status probes carry a
// "Bot mode: <token>" first line followed by operator text; the liveness
// probe carries an epoch-seconds timestamp on its first line. Backends
// implement Store so the coordinator never touches the transport directly.
package probe

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/yaroslav/modekeeper/models"
)

// DataFile is the file name used when a target names a directory.
const DataFile = "data"

// Signal is what one probe target proposed at read time.
type Signal struct {
	// Target is the configured target name.
	Target string
	// Location is where the content was read from (an absolute file path
	// or a backend key). Operators are pointed at it.
	Location string
	// Modes lists every mode token found in the content, most severe first.
	// Empty when the probe is missing, unreadable or carries no token.
	Modes []models.Mode
}

// Store is the capability the coordinator uses to read and write probes.
type Store interface {
	// Targets returns the configured probe targets in a stable order.
	Targets() []string

	// ReadSignals returns one Signal per target. It never fails; missing or
	// unreadable targets produce a Signal without modes.
	ReadSignals(ctx context.Context) []Signal

	// WriteStatus replaces the target's content with the formatted status.
	// A target whose parent location does not exist is skipped with a nil
	// error. Permission failures wrap fs.ErrPermission.
	WriteStatus(ctx context.Context, target string, mode models.Mode, text string) error

	// WriteHeartbeat stamps now on the target's first line.
	WriteHeartbeat(ctx context.Context, target string, now time.Time) error
}

// ScanModes returns every known mode whose token appears anywhere in
// content, in precedence order. Hand-edited files are accepted, so the
// token does not have to be on the first line.
func ScanModes(content string) []models.Mode {
	var found []models.Mode
	for _, mode := range models.AllModes() {
		if strings.Contains(content, mode.Token()) {
			found = append(found, mode)
		}
	}
	return found
}

// FormatStatus renders a status probe body.
func FormatStatus(mode models.Mode, text string) string {
	return models.StatusPrefix + mode.Token() + "\n" + text
}

// StampHeartbeat puts now (epoch seconds) on the first line of content.
// A purely numeric first line is replaced; anything else is kept and
// shifted down by one line.
func StampHeartbeat(content string, now time.Time) string {
	stamp := strconv.FormatInt(now.Unix(), 10) + "\n"
	if content == "" {
		return stamp
	}

	first, rest, found := strings.Cut(content, "\n")
	if isNumeric(strings.TrimSpace(first)) {
		if !found {
			return stamp
		}
		return stamp + rest
	}
	return stamp + content
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
