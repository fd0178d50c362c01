package bug

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-debbugs/soapenc"
)

// statusRecord returns a decoded status record for bug 486212 with fields
// overridden by kv pairs. A nil value removes the field.
func statusRecord(kv ...any) soapenc.Map {
	fields := []soapenc.Field{
		{Name: "bug_num", Value: soapenc.Text("486212")},
		{Name: "package", Value: soapenc.Text("python-debianbts")},
		{Name: "source", Value: soapenc.Text("python-debianbts")},
		{Name: "subject", Value: soapenc.Text("get_status fails for archived bugs")},
		{Name: "originator", Value: soapenc.Text("Jane Doe <jane@example.org>")},
		{Name: "owner", Value: soapenc.Text("")},
		{Name: "msgid", Value: soapenc.Text("<123@example.org>")},
		{Name: "severity", Value: soapenc.Text("normal")},
		{Name: "tags", Value: soapenc.Text("patch  moreinfo")},
		{Name: "done", Value: soapenc.Text("")},
		{Name: "archived", Value: soapenc.Text("0")},
		{Name: "unarchived", Value: soapenc.Text("")},
		{Name: "forwarded", Value: soapenc.Text("")},
		{Name: "pending", Value: soapenc.Text("pending")},
		{Name: "location", Value: soapenc.Text("db-h")},
		{Name: "summary", Value: soapenc.Text("")},
		{Name: "affects", Value: soapenc.Text("a, b ,c")},
		{Name: "mergedwith", Value: soapenc.Text("1 2")},
		{Name: "blocks", Value: soapenc.Text("")},
		{Name: "blockedby", Value: soapenc.Map{}},
		{Name: "found_versions", Value: soapenc.List{soapenc.Text("1.0-1"), soapenc.Text("1.1-2")}},
		{Name: "fixed_versions", Value: soapenc.List{}},
		{Name: "date", Value: soapenc.Text("1214006400")},
		{Name: "log_modified", Value: soapenc.Text("1214006400.25")},
	}

	for i := 0; i+1 < len(kv); i += 2 {
		name := kv[i].(string)
		idx := slices.IndexFunc(fields, func(f soapenc.Field) bool { return f.Name == name })
		if kv[i+1] == nil {
			if idx >= 0 {
				fields = slices.Delete(fields, idx, idx+1)
			}
			continue
		}
		v := kv[i+1].(soapenc.Value)
		if idx >= 0 {
			fields[idx].Value = v
		} else {
			fields = append(fields, soapenc.Field{Name: name, Value: v})
		}
	}
	return soapenc.Map(fields)
}

func TestParseStatus(t *testing.T) {
	r, err := ParseStatus(statusRecord())
	require.NoError(t, err)

	want := &Report{
		BugNum:        486212,
		Originator:    "Jane Doe <jane@example.org>",
		Subject:       "get_status fails for archived bugs",
		MsgID:         "<123@example.org>",
		Package:       "python-debianbts",
		Source:        "python-debianbts",
		Pending:       "pending",
		Location:      "db-h",
		Severity:      Normal,
		Tags:          []string{"patch", "moreinfo"},
		Affects:       []string{"a", "b", "c"},
		FoundVersions: []string{"1.0-1", "1.1-2"},
		FixedVersions: []string{},
		MergedWith:    []int{1, 2},
		Blocks:        []int{},
		BlockedBy:     []int{},
		Date:          time.Date(2008, 6, 21, 0, 0, 0, 0, time.UTC),
		LogModified:   time.Date(2008, 6, 21, 0, 0, 0, 250_000_000, time.UTC),
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("ParseStatus mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStatusDone(t *testing.T) {
	tests := []struct {
		name       string
		done       soapenc.Value
		wantDone   bool
		wantDoneBy string
	}{
		{"empty", soapenc.Text(""), false, ""},
		{"zero", soapenc.Text("0"), false, ""},
		{"absent", nil, false, ""},
		{"address", soapenc.Text("Maintainer <m@debian.org>"), true, "Maintainer <m@debian.org>"},
		{"one", soapenc.Text("1"), true, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec soapenc.Map
			if tt.done == nil {
				rec = statusRecord("done", nil)
			} else {
				rec = statusRecord("done", tt.done)
			}

			r, err := ParseStatus(rec)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDone, r.Done)
			if !tt.wantDone {
				assert.Nil(t, r.DoneBy)
				return
			}
			require.NotNil(t, r.DoneBy)
			assert.Equal(t, tt.wantDoneBy, *r.DoneBy)
		})
	}
}

func TestParseStatusFields(t *testing.T) {
	t.Run("affects", func(t *testing.T) {
		for in, want := range map[string][]string{
			"a, b ,c":    {"a", "b", "c"},
			"":           {},
			",,":         {},
			" x ,, , y ": {"x", "y"},
			"single":     {"single"},
		} {
			r, err := ParseStatus(statusRecord("affects", soapenc.Text(in)))
			require.NoError(t, err)
			assert.Equal(t, want, r.Affects, "affects %q", in)
		}
	})

	t.Run("flags", func(t *testing.T) {
		r, err := ParseStatus(statusRecord("archived", soapenc.Text("1"), "unarchived", soapenc.Text(" 0 ")))
		require.NoError(t, err)
		assert.True(t, r.Archived)
		assert.False(t, r.Unarchived)
	})

	t.Run("single typed version", func(t *testing.T) {
		r, err := ParseStatus(statusRecord("fixed_versions", soapenc.Text("2.0")))
		require.NoError(t, err)
		assert.Equal(t, []string{"2.0"}, r.FixedVersions)
	})

	t.Run("bug lists as arrays", func(t *testing.T) {
		r, err := ParseStatus(statusRecord("blocks", soapenc.List{soapenc.Text("7"), soapenc.Text("8")}))
		require.NoError(t, err)
		assert.Equal(t, []int{7, 8}, r.Blocks)
	})

	t.Run("base64 decoded text is kept", func(t *testing.T) {
		// The codec has already turned base64Binary into text.
		r, err := ParseStatus(statusRecord("originator", soapenc.Text("Ondřej Nový <o@example.org>")))
		require.NoError(t, err)
		assert.Equal(t, "Ondřej Nový <o@example.org>", r.Originator)
	})

	t.Run("missing optional text", func(t *testing.T) {
		r, err := ParseStatus(statusRecord("owner", nil, "summary", nil, "tags", nil))
		require.NoError(t, err)
		assert.Empty(t, r.Owner)
		assert.Empty(t, r.Summary)
		assert.Empty(t, r.Tags)
	})

	t.Run("negative fractional date", func(t *testing.T) {
		r, err := ParseStatus(statusRecord("date", soapenc.Text("-1.5")))
		require.NoError(t, err)
		assert.Equal(t, time.Date(1969, 12, 31, 23, 59, 58, 500_000_000, time.UTC), r.Date)
	})
}

func TestParseStatusMalformed(t *testing.T) {
	tests := []struct {
		name  string
		rec   soapenc.Value
		field string
	}{
		{"missing severity", statusRecord("severity", nil), "severity"},
		{"unknown severity", statusRecord("severity", soapenc.Text("urgent")), "severity"},
		{"empty severity", statusRecord("severity", soapenc.Text("")), "severity"},
		{"missing bug number", statusRecord("bug_num", nil), "bug_num"},
		{"bad bug number", statusRecord("bug_num", soapenc.Text("abc")), "bug_num"},
		{"missing date", statusRecord("date", nil), "date"},
		{"bad date", statusRecord("date", soapenc.Text("yesterday")), "date"},
		{"infinite date", statusRecord("log_modified", soapenc.Text("inf")), "log_modified"},
		{"bad mergedwith", statusRecord("mergedwith", soapenc.Text("1 x")), "mergedwith"},
		{"list subject", statusRecord("subject", soapenc.List{soapenc.Text("a")}), "subject"},
		{"not a map", soapenc.Text("486212"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatus(tt.rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRecord)

			var mre *MalformedRecordError
			require.True(t, errors.As(err, &mre))
			assert.Equal(t, tt.field, mre.Field)
		})
	}
}

func TestParseStatusMalformedNamesBug(t *testing.T) {
	_, err := ParseStatus(statusRecord("severity", soapenc.Text("urgent")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSeverity)
	assert.Contains(t, err.Error(), "#486212")
}

func TestParseStatuses(t *testing.T) {
	first := statusRecord()
	second := statusRecord("bug_num", soapenc.Text("1000"), "severity", soapenc.Text("grave"))

	tests := []struct {
		name string
		v    soapenc.Value
		want []int
	}{
		{"absent", nil, []int{}},
		{"empty struct", soapenc.Map{}, []int{}},
		{"blank text", soapenc.Text(" "), []int{}},
		{
			name: "map keyed by bug number",
			v: soapenc.Map{
				{Name: "486212", Value: first},
				{Name: "1000", Value: second},
			},
			want: []int{486212, 1000},
		},
		{
			name: "list of key value structs",
			v: soapenc.List{
				soapenc.Map{{Name: "key", Value: soapenc.Text("1000")}, {Name: "value", Value: second}},
				soapenc.Map{{Name: "key", Value: soapenc.Text("486212")}, {Name: "value", Value: first}},
			},
			want: []int{1000, 486212},
		},
		{
			name: "untyped struct of items",
			v: soapenc.Map{
				{Name: "item", Value: soapenc.Map{{Name: "key", Value: soapenc.Text("486212")}, {Name: "value", Value: first}}},
				{Name: "item", Value: soapenc.Map{{Name: "key", Value: soapenc.Text("1000")}, {Name: "value", Value: second}}},
			},
			want: []int{486212, 1000},
		},
		{
			name: "list of bare records",
			v:    soapenc.List{first},
			want: []int{486212},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports, err := ParseStatuses(tt.v)
			require.NoError(t, err)

			got := make([]int, len(reports))
			for i, r := range reports {
				got[i] = r.BugNum
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatusesErrors(t *testing.T) {
	_, err := ParseStatuses(soapenc.Text("oops"))
	assert.ErrorIs(t, err, soapenc.ErrUnexpectedShape)

	_, err = ParseStatuses(soapenc.Map{{Name: "1", Value: statusRecord("severity", nil)}})
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestSeverity(t *testing.T) {
	want := map[Severity]int{
		Critical: 7, Grave: 6, Serious: 5, Important: 4, Normal: 3, Minor: 2, Wishlist: 1,
	}
	for _, s := range Severities() {
		assert.Equal(t, want[s], s.Rank(), "rank of %s", s)
		assert.True(t, s.Valid())

		parsed, err := ParseSeverity(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	assert.Len(t, Severities(), 7)

	assert.Zero(t, Severity("urgent").Rank())
	assert.False(t, Severity("").Valid())

	_, err := ParseSeverity("Critical")
	assert.ErrorIs(t, err, ErrUnknownSeverity)
}

func report(sev Severity, done, archived bool) *Report {
	return &Report{Severity: sev, Done: done, Archived: archived}
}

func TestOrderingKey(t *testing.T) {
	assert.Equal(t, 7, report(Critical, true, true).OrderingKey())
	assert.Equal(t, 13, report(Normal, true, false).OrderingKey())
	assert.Equal(t, 21, report(Wishlist, false, false).OrderingKey())
	assert.Equal(t, 27, report(Critical, false, false).OrderingKey())
}

func TestCompareArchivedBelowEverything(t *testing.T) {
	for _, aSev := range Severities() {
		for _, bSev := range Severities() {
			for _, bDone := range []bool{false, true} {
				a := report(aSev, true, true)
				b := report(bSev, bDone, false)
				assert.Equal(t, -1, Compare(a, b), "archived %s vs %s done=%v", aSev, bSev, bDone)
				assert.Equal(t, 1, Compare(b, a))
			}
		}
	}
}

func TestCompareDoneBelowOpen(t *testing.T) {
	for _, aSev := range Severities() {
		for _, bSev := range Severities() {
			assert.Equal(t, -1, Compare(report(aSev, true, false), report(bSev, false, false)))
		}
	}
}

func TestCompareSeverityWithinTier(t *testing.T) {
	for _, tier := range []struct{ done, archived bool }{{false, false}, {true, false}, {true, true}} {
		for _, aSev := range Severities() {
			for _, bSev := range Severities() {
				a := report(aSev, tier.done, tier.archived)
				b := report(bSev, tier.done, tier.archived)
				less := Compare(a, b) < 0
				assert.Equal(t, aSev.Rank() < bSev.Rank(), less, "%s vs %s", aSev, bSev)
			}
		}
	}
}

func TestCompareEqualKeysIgnoreOtherFields(t *testing.T) {
	a := &Report{BugNum: 1, Package: "a", Severity: Serious}
	b := &Report{BugNum: 2, Package: "b", Severity: Serious, Tags: []string{"patch"}}
	assert.Zero(t, Compare(a, b))
}

func TestSortByUrgency(t *testing.T) {
	reports := []*Report{
		{BugNum: 1, Severity: Critical, Archived: true, Done: true},
		{BugNum: 2, Severity: Wishlist},
		{BugNum: 3, Severity: Grave, Done: true},
		{BugNum: 4, Severity: Serious},
	}

	slices.SortStableFunc(reports, CompareUrgency)
	got := make([]int, len(reports))
	for i, r := range reports {
		got[i] = r.BugNum
	}
	assert.Equal(t, []int{4, 2, 3, 1}, got)

	slices.SortStableFunc(reports, Compare)
	assert.Equal(t, 1, reports[0].BugNum)
}

func TestReportURL(t *testing.T) {
	r := &Report{BugNum: 486212}
	assert.Equal(t, "https://bugs.debian.org/486212", r.URL(""))
	assert.Equal(t, "http://bts.example.org/486212", r.URL("http://bts.example.org"))
	assert.Equal(t, "http://bts.example.org/486212", r.URL("http://bts.example.org/"))
}

func TestReportString(t *testing.T) {
	r, err := ParseStatus(statusRecord("done", soapenc.Text("Fixer <f@example.org>")))
	require.NoError(t, err)

	s := r.String()
	assert.True(t, strings.HasSuffix(s, "\n"))
	for _, line := range []string{
		"bug_num: 486212",
		"severity: normal",
		"tags: patch moreinfo",
		"done: true",
		"done_by: Fixer <f@example.org>",
		"affects: a, b, c",
		"mergedwith: 1 2",
		"date: 2008-06-21T00:00:00Z",
	} {
		assert.Contains(t, s, line+"\n")
	}
}
