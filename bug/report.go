// Package bug models Debian bug reports as returned by the Debbugs SOAP
// interface.
//
// # Reports
//
// A Report is one bug's status snapshot. ParseStatus builds it from the
// decoded get_status payload, normalizing the server's loose typing:
//
//	tags                 whitespace separated tokens
//	done, archived, ...  "" and "0" are false, anything else true
//	done_by              the raw done field, only when done
//	mergedwith, blocks   whitespace separated bug numbers
//	affects              comma separated, trimmed, empty parts dropped
//	date, log_modified   float seconds since the epoch, in UTC
//
// Reports sort by urgency. Compare orders archived bugs below done bugs
// below open bugs, and by severity within each group:
//
//	slices.SortFunc(reports, bug.Compare)          // least urgent first
//	slices.SortFunc(reports, bug.CompareUrgency)   // most urgent first
//
// # Logs
//
// A Log is one message from a bug's history. Its Message field is the
// parsed mail; Text and Subject decode transfer encodings and charsets.
package bug

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WebURL is the Debian bug tracker web front end.
const WebURL = "https://bugs.debian.org/"

// Severity is the urgency of a bug.
type Severity string

// Severities from most to least urgent.
const (
	Critical  Severity = "critical"
	Grave     Severity = "grave"
	Serious   Severity = "serious"
	Important Severity = "important"
	Normal    Severity = "normal"
	Minor     Severity = "minor"
	Wishlist  Severity = "wishlist"
)

var severityRanks = map[Severity]int{
	Critical:  7,
	Grave:     6,
	Serious:   5,
	Important: 4,
	Normal:    3,
	Minor:     2,
	Wishlist:  1,
}

// Severities lists every known severity from most to least urgent.
func Severities() []Severity {
	return []Severity{Critical, Grave, Serious, Important, Normal, Minor, Wishlist}
}

// ErrUnknownSeverity is returned by ParseSeverity.
var ErrUnknownSeverity = errors.New("unknown severity")

// ParseSeverity validates s.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if _, ok := severityRanks[sev]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
	}
	return sev, nil
}

// Rank returns 7 for critical down to 1 for wishlist, and 0 for unknown
// values.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

func (s Severity) String() string { return string(s) }

// Report is the status of one bug.
type Report struct {
	BugNum     int
	Originator string
	Subject    string
	MsgID      string
	Package    string
	Source     string
	Owner      string
	Summary    string
	Forwarded  string // URL or address the bug was forwarded to
	Pending    string // "pending", "done", "forwarded", ...
	Location   string // "db-h" or "archive"

	Severity Severity
	Tags     []string

	Done       bool
	DoneBy     *string // set only when Done
	Archived   bool
	Unarchived bool

	Affects       []string
	FoundVersions []string
	FixedVersions []string
	MergedWith    []int
	Blocks        []int
	BlockedBy     []int

	Date        time.Time // creation, UTC
	LogModified time.Time // last change, UTC
}

// Ordering tiers. The severity rank is added to the tier.
const (
	tierArchived = 0
	tierDone     = 10
	tierOpen     = 20
)

// OrderingKey returns the urgency of r. Every archived bug ranks below
// every done bug, which ranks below every open bug. Within a tier the
// severity rank decides.
func (r *Report) OrderingKey() int {
	key := tierOpen
	switch {
	case r.Archived:
		key = tierArchived
	case r.Done:
		key = tierDone
	}
	return key + r.Severity.Rank()
}

// Compare orders reports from least to most urgent. Reports with equal
// ordering keys compare equal whatever their other fields.
func Compare(a, b *Report) int {
	return cmp.Compare(a.OrderingKey(), b.OrderingKey())
}

// CompareUrgency orders reports from most to least urgent.
func CompareUrgency(a, b *Report) int {
	return Compare(b, a)
}

// URL returns the web page of the bug below base. An empty base means
// WebURL.
func (r *Report) URL(base string) string {
	if base == "" {
		base = WebURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strconv.Itoa(r.BugNum)
}

// String renders r as "field: value" lines.
func (r *Report) String() string {
	doneBy := ""
	if r.DoneBy != nil {
		doneBy = *r.DoneBy
	}

	fields := []struct {
		name  string
		value any
	}{
		{"bug_num", r.BugNum},
		{"package", r.Package},
		{"source", r.Source},
		{"subject", r.Subject},
		{"severity", r.Severity},
		{"tags", strings.Join(r.Tags, " ")},
		{"originator", r.Originator},
		{"owner", r.Owner},
		{"date", formatTime(r.Date)},
		{"log_modified", formatTime(r.LogModified)},
		{"done", r.Done},
		{"done_by", doneBy},
		{"archived", r.Archived},
		{"unarchived", r.Unarchived},
		{"forwarded", r.Forwarded},
		{"pending", r.Pending},
		{"location", r.Location},
		{"msgid", r.MsgID},
		{"summary", r.Summary},
		{"affects", strings.Join(r.Affects, ", ")},
		{"found_versions", strings.Join(r.FoundVersions, " ")},
		{"fixed_versions", strings.Join(r.FixedVersions, " ")},
		{"mergedwith", joinInts(r.MergedWith)},
		{"blocks", joinInts(r.Blocks)},
		{"blockedby", joinInts(r.BlockedBy)},
	}

	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: %v\n", f.name, f.value)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
