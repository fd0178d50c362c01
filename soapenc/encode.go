package soapenc

import (
	"encoding/xml"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/smnsjas/go-debbugs/xmltree"
)

// Encode converts a Go value into an element called name.
//
// Supported values are strings, every integer kind, bools (sent as 0/1),
// slices and arrays of supported values, maps with string keys, and the
// decoded forms Text, List and Map. Go maps are flattened with their keys in
// sorted order; use Map when the order on the wire matters.
func Encode(name string, v any) (*xmltree.Element, error) {
	switch val := v.(type) {
	case nil:
		return nil, &EncodingError{Name: name, Value: v, Err: ErrUnsupportedType}

	case string:
		return encodeString(name, val), nil

	case Text:
		return encodeString(name, string(val)), nil

	case bool:
		if val {
			return encodeInt(name, "1"), nil
		}
		return encodeInt(name, "0"), nil

	case int:
		return encodeInt(name, strconv.Itoa(val)), nil

	case int64:
		return encodeInt(name, strconv.FormatInt(val, 10)), nil

	case int32:
		return encodeInt(name, strconv.FormatInt(int64(val), 10)), nil

	case List:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = item
		}
		return encodeArray(name, items)

	case Map:
		return encodeArray(name, flattenMap(val))

	case []any:
		return encodeArray(name, val)

	case []int:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = item
		}
		return encodeArray(name, items)

	case []string:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = item
		}
		return encodeArray(name, items)

	case map[string]any:
		return encodeArray(name, flattenGoMap(reflect.ValueOf(val)))
	}

	// Remaining integer kinds and generic containers
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return encodeInt(name, strconv.FormatInt(rv.Int(), 10)), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return encodeInt(name, strconv.FormatUint(rv.Uint(), 10)), nil

	case reflect.String:
		return encodeString(name, rv.String()), nil

	case reflect.Bool:
		return Encode(name, rv.Bool())

	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
		return encodeArray(name, items)

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		return encodeArray(name, flattenGoMap(rv))
	}

	return nil, &EncodingError{Name: name, Value: v, Err: ErrUnsupportedType}
}

func encodeString(name, val string) *xmltree.Element {
	return xmltree.New("", name, typeAttr(PrefixXSD, "string")).SetText(val)
}

func encodeInt(name, digits string) *xmltree.Element {
	return xmltree.New("", name, typeAttr(PrefixXSD, "int")).SetText(digits)
}

// encodeArray serializes items as a soapenc:Array of <item> elements.
func encodeArray(name string, items []any) (*xmltree.Element, error) {
	el := xmltree.New("", name,
		typeAttr(PrefixSOAPENC, "Array"),
		xmltree.Attr(PrefixSOAPENC, "arrayType", fmt.Sprintf("%s:anyType[%d]", PrefixXSD, len(items))),
	)

	for i, item := range items {
		child, err := Encode("item", item)
		if err != nil {
			return nil, fmt.Errorf("encode %s item %d: %w", name, i, err)
		}
		el.Append(child)
	}
	return el, nil
}

func typeAttr(prefix, typ string) xml.Attr {
	return xmltree.Attr(PrefixXSI, "type", prefix+":"+typ)
}

// flattenMap turns {k1: v1, k2: v2} into [k1, v1, k2, v2].
func flattenMap(m Map) []any {
	items := make([]any, 0, 2*len(m))
	for _, f := range m {
		items = append(items, f.Name, f.Value)
	}
	return items
}

func flattenGoMap(rv reflect.Value) []any {
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	items := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		v := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
		items = append(items, k, v.Interface())
	}
	return items
}
