// Package archive keeps an append-only, per-authority store of table
// snapshots and reconstructs the current view of each authority from it.
//
// Every snapshot is a directory named
//
//	<LA>/<YYYYMMDDTHHMMSS>-<NNNN>-<session>[-rollup]
//
// holding one parquet file per table. Directory names are the only source of
// ordering. A roll-up folds every snapshot of the current session into one;
// the current session of an authority is its newest roll-up plus every later
// snapshot.
package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout formats the timestamp component of a snapshot id.
const TimestampLayout = "20060102T150405"

const rollupSuffix = "-rollup"

// SnapshotID identifies one snapshot within an authority.
type SnapshotID struct {
	Timestamp string
	Index     int
	Session   string
	Rollup    bool
}

// String returns the directory name of the snapshot.
func (s SnapshotID) String() string {
	id := fmt.Sprintf("%s-%04d-%s", s.Timestamp, s.Index, s.Session)
	if s.Rollup {
		id += rollupSuffix
	}
	return id
}

// Time returns the parsed timestamp.
func (s SnapshotID) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, s.Timestamp)
}

// ParseSnapshotID parses a snapshot directory name.
func ParseSnapshotID(name string) (SnapshotID, error) {
	var id SnapshotID
	rest := name
	if strings.HasSuffix(rest, rollupSuffix) {
		id.Rollup = true
		rest = strings.TrimSuffix(rest, rollupSuffix)
	}
	parts := strings.SplitN(rest, "-", 3)
	if len(parts) != 3 || parts[2] == "" {
		return SnapshotID{}, fmt.Errorf("invalid snapshot id %q", name)
	}
	if _, err := time.Parse(TimestampLayout, parts[0]); err != nil {
		return SnapshotID{}, fmt.Errorf("invalid snapshot id %q: timestamp: %w", name, err)
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return SnapshotID{}, fmt.Errorf("invalid snapshot id %q: index %q", name, parts[1])
	}
	id.Timestamp, id.Index, id.Session = parts[0], idx, parts[2]
	return id, nil
}

// IsRollup reports whether a snapshot id names a roll-up.
func IsRollup(id string) bool {
	return strings.HasSuffix(id, rollupSuffix)
}
