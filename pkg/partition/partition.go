// Package partition groups canonicalized readings by cleaned device
// identity and fixes the per-device ordering every downstream stage
// relies on: newest first, rows without a resolvable timestamp last.
package partition

import (
	"sort"
	"strings"

	"github.com/sensordash/sensordash/pkg/reading"
)

// Partitions is the per-device view of one run's readings.
type Partitions struct {
	Devices map[string][]reading.Reading

	// Order lists device ids sorted lexicographically, for
	// deterministic iteration over Devices.
	Order []string

	// Dropped counts rows discarded for a missing or junk identity.
	Dropped int
}

// CleanID normalizes a raw device identifier. The second return is
// false for identities that must be discarded: empty, "nan", "n/a"
// (spreadsheet exports leak all three).
func CleanID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	switch strings.ToLower(id) {
	case "", "nan", "n/a":
		return "", false
	}
	return id, true
}

// ByDevice partitions readings by cleaned identity. Within each
// partition rows are ordered by resolved timestamp descending; rows
// with unparseable timestamps sort after all parseable ones and keep
// their input order among themselves.
func ByDevice(rows []reading.Reading) Partitions {
	p := Partitions{Devices: make(map[string][]reading.Reading)}

	for _, r := range rows {
		id, ok := CleanID(r.DeviceID)
		if !ok {
			p.Dropped++
			continue
		}
		r.DeviceID = id
		p.Devices[id] = append(p.Devices[id], r)
	}

	for id, group := range p.Devices {
		sortNewestFirst(group)
		p.Devices[id] = group
		p.Order = append(p.Order, id)
	}
	sort.Strings(p.Order)
	return p
}

func sortNewestFirst(group []reading.Reading) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		switch {
		case a.HasTimestamp && b.HasTimestamp:
			return a.Timestamp.After(b.Timestamp)
		case a.HasTimestamp:
			return true
		default:
			// b parseable or both unparseable: keep input order
			return false
		}
	})
}
