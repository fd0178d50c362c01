package bug

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/smnsjas/go-debbugs/soapenc"
)

// ErrMalformedRecord matches every *MalformedRecordError.
var ErrMalformedRecord = errors.New("malformed bug record")

// MalformedRecordError reports a status record that lacks a required field
// or carries a value that cannot be interpreted.
type MalformedRecordError struct {
	BugNum int    // 0 when the number itself is unusable
	Field  string // status field name
	Err    error
}

func (e *MalformedRecordError) Error() string {
	if e.BugNum != 0 {
		return fmt.Sprintf("bug #%d: field %q: %v", e.BugNum, e.Field, e.Err)
	}
	return fmt.Sprintf("bug record: field %q: %v", e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedRecord.
func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

var errMissing = errors.New("missing")

// ParseStatuses turns a decoded get_status result into reports, in
// response order.
//
// The server answers with a Map from bug number to status record. Some
// server versions send a List of key/value items instead, and an empty
// result may arrive as an absent value or an empty struct. All of these
// are accepted.
func ParseStatuses(v soapenc.Value) ([]*Report, error) {
	var records []soapenc.Value

	switch val := v.(type) {
	case nil:
		return []*Report{}, nil

	case soapenc.Map:
		for _, f := range val {
			records = append(records, unwrapEntry(f.Value))
		}

	case soapenc.List:
		for _, item := range val {
			records = append(records, unwrapEntry(item))
		}

	case soapenc.Text:
		if strings.TrimSpace(string(val)) == "" {
			return []*Report{}, nil
		}
		return nil, fmt.Errorf("%w: status result is text", soapenc.ErrUnexpectedShape)
	}

	reports := make([]*Report, 0, len(records))
	for i, rec := range records {
		r, err := ParseStatus(rec)
		if err != nil {
			return nil, fmt.Errorf("status record %d: %w", i, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// unwrapEntry returns the value of an <item><key/><value/></item> entry
// that arrived without a Map type and was decoded as a plain struct.
func unwrapEntry(v soapenc.Value) soapenc.Value {
	m, ok := v.(soapenc.Map)
	if !ok || len(m) != 2 {
		return v
	}
	if _, hasKey := m.Get("key"); !hasKey {
		return v
	}
	if inner, found := m.Get("value"); found {
		return inner
	}
	return v
}

// ParseStatus builds a Report from one decoded status record.
func ParseStatus(v soapenc.Value) (*Report, error) {
	m, ok := v.(soapenc.Map)
	if !ok {
		return nil, &MalformedRecordError{
			Err: fmt.Errorf("%w: record is %s, want map", soapenc.ErrUnexpectedShape, soapenc.Describe(v)),
		}
	}

	p := statusParser{m: m}

	r := &Report{}
	r.BugNum = p.requiredInt("bug_num")
	p.bugNum = r.BugNum

	r.Originator = p.text("originator")
	r.Subject = p.text("subject")
	r.MsgID = p.text("msgid")
	r.Package = p.text("package")
	r.Source = p.text("source")
	r.Owner = p.text("owner")
	r.Summary = p.text("summary")
	r.Forwarded = p.text("forwarded")
	r.Pending = p.text("pending")
	r.Location = p.text("location")

	r.Severity = p.severity("severity")
	r.Tags = strings.Fields(p.text("tags"))

	r.Done = p.boolean("done")
	if r.Done {
		doneBy := p.text("done")
		r.DoneBy = &doneBy
	}
	r.Archived = p.boolean("archived")
	r.Unarchived = p.boolean("unarchived")

	r.Affects = splitAffects(p.text("affects"))
	r.FoundVersions = p.stringList("found_versions")
	r.FixedVersions = p.stringList("fixed_versions")
	r.MergedWith = p.ints("mergedwith")
	r.Blocks = p.ints("blocks")
	r.BlockedBy = p.ints("blockedby")

	r.Date = p.timestamp("date")
	r.LogModified = p.timestamp("log_modified")

	if p.err != nil {
		return nil, p.err
	}
	return r, nil
}

// statusParser reads fields from a status record, keeping the first
// error.
type statusParser struct {
	m      soapenc.Map
	bugNum int
	err    error
}

func (p *statusParser) fail(field string, err error) {
	if p.err == nil {
		p.err = &MalformedRecordError{BugNum: p.bugNum, Field: field, Err: err}
	}
}

// text returns a scalar field. Absent fields and empty structs are "".
func (p *statusParser) text(field string) string {
	v, _ := p.m.Get(field)
	switch val := v.(type) {
	case nil:
		return ""
	case soapenc.Text:
		return string(val)
	case soapenc.Map:
		if len(val) == 0 {
			return ""
		}
	}
	p.fail(field, fmt.Errorf("%w: got %s, want text", soapenc.ErrUnexpectedShape, soapenc.Describe(v)))
	return ""
}

func (p *statusParser) requiredText(field string) string {
	v, ok := p.m.Get(field)
	if !ok || v == nil {
		p.fail(field, errMissing)
		return ""
	}
	return p.text(field)
}

func (p *statusParser) requiredInt(field string) int {
	s := strings.TrimSpace(p.requiredText(field))
	if p.err != nil {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(field, fmt.Errorf("%q is not an integer", s))
		return 0
	}
	return n
}

func (p *statusParser) severity(field string) Severity {
	s := p.requiredText(field)
	if p.err != nil {
		return ""
	}
	sev, err := ParseSeverity(strings.TrimSpace(s))
	if err != nil {
		p.fail(field, err)
		return ""
	}
	return sev
}

func (p *statusParser) boolean(field string) bool {
	return parseBool(p.text(field))
}

func (p *statusParser) ints(field string) []int {
	v, _ := p.m.Get(field)
	ids, err := soapenc.Ints(v)
	if err != nil {
		p.fail(field, err)
		return []int{}
	}
	return ids
}

func (p *statusParser) stringList(field string) []string {
	v, _ := p.m.Get(field)
	return soapenc.Strings(v)
}

func (p *statusParser) timestamp(field string) time.Time {
	s := strings.TrimSpace(p.requiredText(field))
	if p.err != nil {
		return time.Time{}
	}
	t, err := parseEpoch(s)
	if err != nil {
		p.fail(field, err)
		return time.Time{}
	}
	return t
}

// parseBool treats "" and "0" as false and anything else as true.
func parseBool(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != "0"
}

// splitAffects splits a comma separated package list.
func splitAffects(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseEpoch converts float seconds since the Unix epoch to UTC.
func parseEpoch(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a timestamp", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("%q is not a finite timestamp", s)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}
