// Package uuid generates run identifiers.
package uuid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator creates UUID v7 run IDs, optionally prefixed (for example with the
// crawl mode) so artifacts of different modes sort apart.
type Generator struct {
	prefix string
}

// New creates a Generator. An empty prefix yields bare UUIDs.
func New(prefix string) *Generator {
	return &Generator{prefix: strings.Trim(prefix, "-")}
}

// NewID returns "<prefix>-<uuid7>" or a bare UUID7 string.
func (g Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	if g.prefix == "" {
		return id.String(), nil
	}
	return g.prefix + "-" + id.String(), nil
}

// StartedAt recovers the creation time embedded in a run ID made by NewID.
func StartedAt(runID string) (time.Time, error) {
	const uuidLen = 36
	if len(runID) < uuidLen {
		return time.Time{}, fmt.Errorf("run id %q is too short", runID)
	}
	id, err := uuid.Parse(runID[len(runID)-uuidLen:])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run id: %w", err)
	}
	if id.Version() != 7 {
		return time.Time{}, fmt.Errorf("run id %q is not a uuid7", runID)
	}
	sec, nsec := id.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), nil
}
