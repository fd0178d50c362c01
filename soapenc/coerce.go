package soapenc

import (
	"fmt"
	"strconv"
	"strings"
)

// Describe names the variant of v for error messages.
func Describe(v Value) string {
	switch v.(type) {
	case nil:
		return "absent"
	case Text:
		return "text"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Ints coerces v into a list of integers.
//
// A List must hold Text items that parse as integers. A Text is split on
// whitespace, so "1 2 3" and "" are accepted. An absent value is an empty
// list. A Map is an untyped element whose children are the integers, in
// document order; the server renders an empty result that way too.
func Ints(v Value) ([]int, error) {
	switch val := v.(type) {
	case nil:
		return []int{}, nil

	case Text:
		fields := strings.Fields(string(val))
		ints := make([]int, 0, len(fields))
		for _, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an integer", ErrUnexpectedShape, f)
			}
			ints = append(ints, n)
		}
		return ints, nil

	case List:
		ints := make([]int, 0, len(val))
		for i, item := range val {
			t, ok := item.(Text)
			if !ok {
				return nil, fmt.Errorf("%w: item %d is %s, want text", ErrUnexpectedShape, i, Describe(item))
			}
			n, err := strconv.Atoi(strings.TrimSpace(string(t)))
			if err != nil {
				return nil, fmt.Errorf("%w: item %d %q is not an integer", ErrUnexpectedShape, i, string(t))
			}
			ints = append(ints, n)
		}
		return ints, nil

	case Map:
		ints := make([]int, 0, len(val))
		for _, f := range val {
			t, ok := f.Value.(Text)
			if !ok {
				return nil, fmt.Errorf("%w: member <%s> is %s, want text", ErrUnexpectedShape, f.Name, Describe(f.Value))
			}
			n, err := strconv.Atoi(strings.TrimSpace(string(t)))
			if err != nil {
				return nil, fmt.Errorf("%w: member <%s> %q is not an integer", ErrUnexpectedShape, f.Name, string(t))
			}
			ints = append(ints, n)
		}
		return ints, nil
	}
	return nil, fmt.Errorf("%w: got %s, want list of integers", ErrUnexpectedShape, Describe(v))
}

// Strings coerces v into a list of strings. A List contributes its Text
// items, a non-empty Text becomes a one-element list, and anything else is
// empty.
func Strings(v Value) []string {
	switch val := v.(type) {
	case Text:
		if val == "" {
			return []string{}
		}
		return []string{string(val)}
	case List:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if t, ok := item.(Text); ok {
				out = append(out, string(t))
			}
		}
		return out
	}
	return []string{}
}

// AsText returns the text of v. Absent values and non-text values report
// false.
func AsText(v Value) (string, bool) {
	t, ok := v.(Text)
	return string(t), ok
}
