package soapenc

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"github.com/smnsjas/go-debbugs/xmltree"
)

// Decoder turns response elements into Values.
// The zero value uses DefaultMaxDepth. A Decoder holds no state between
// calls and is safe for concurrent use.
type Decoder struct {
	MaxDepth int
}

// Decode decodes el with the default nesting limit.
func Decode(el *xmltree.Element) (Value, error) {
	var d Decoder
	return d.Decode(el)
}

// Decode decodes el.
func (d *Decoder) Decode(el *xmltree.Element) (Value, error) {
	if el == nil {
		return nil, nil
	}
	return d.decodeElement(el, 0)
}

func (d *Decoder) maxDepth() int {
	if d.MaxDepth > 0 {
		return d.MaxDepth
	}
	return DefaultMaxDepth
}

func (d *Decoder) decodeElement(el *xmltree.Element, depth int) (Value, error) {
	if depth >= d.maxDepth() {
		return nil, &DecodingError{Element: el.Name.Local, Err: fmt.Errorf("%w: depth %d", ErrMaxDepth, d.maxDepth())}
	}

	if isNil(el) {
		return nil, nil
	}

	typ, typed := TypeOf(el)
	if !typed {
		return d.decodeStruct(el, depth)
	}

	switch typ {
	case "string", "int", "float":
		return Text(el.Text), nil

	case "base64Binary":
		return Text(decodeBase64(el.Text)), nil

	case "Array":
		list := make(List, 0, len(el.Children))
		for _, child := range el.Children {
			v, err := d.decodeElement(child, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil

	case "Map":
		return d.decodeMap(el, typ, depth)

	default:
		return nil, &DecodingError{Element: el.Name.Local, Type: typ, Err: ErrUnsupportedType}
	}
}

// decodeMap decodes apachens:Map, whose children each hold a key and a value.
func (d *Decoder) decodeMap(el *xmltree.Element, typ string, depth int) (Value, error) {
	m := make(Map, 0, len(el.Children))
	for i, entry := range el.Children {
		if len(entry.Children) != 2 {
			return nil, &DecodingError{
				Element: el.Name.Local,
				Type:    typ,
				Err:     fmt.Errorf("%w: entry %d has %d sub-elements, want 2", ErrMalformedMap, i, len(entry.Children)),
			}
		}

		key, err := d.decodeElement(entry.Children[0], depth+1)
		if err != nil {
			return nil, err
		}
		keyText, ok := key.(Text)
		if !ok {
			return nil, &DecodingError{
				Element: el.Name.Local,
				Type:    typ,
				Err:     fmt.Errorf("%w: entry %d key is %T", ErrMalformedMap, i, key),
			}
		}

		val, err := d.decodeElement(entry.Children[1], depth+1)
		if err != nil {
			return nil, err
		}
		m = append(m, Field{Name: string(keyText), Value: val})
	}
	return m, nil
}

// decodeStruct handles elements without xsi:type. Their children are named
// members. A childless element with any character data, whitespace
// included, is returned as Text; a childless empty element is an empty Map.
func (d *Decoder) decodeStruct(el *xmltree.Element, depth int) (Value, error) {
	if len(el.Children) == 0 && el.Text != "" {
		return Text(el.Text), nil
	}

	m := make(Map, 0, len(el.Children))
	for _, child := range el.Children {
		v, err := d.decodeElement(child, depth+1)
		if err != nil {
			return nil, err
		}
		m = append(m, Field{Name: child.Name.Local, Value: v})
	}
	return m, nil
}

// TypeOf returns the local part of el's xsi:type annotation, with any
// namespace prefix removed.
func TypeOf(el *xmltree.Element) (string, bool) {
	typ, ok := el.AttrValue("type", NamespaceXSI, PrefixXSI)
	if !ok {
		return "", false
	}
	if i := strings.LastIndexByte(typ, ':'); i >= 0 {
		typ = typ[i+1:]
	}
	return typ, true
}

func isNil(el *xmltree.Element) bool {
	v, ok := el.AttrValue("nil", NamespaceXSI, PrefixXSI)
	return ok && (v == "true" || v == "1")
}

// decodeBase64 decodes s and returns valid UTF-8. Invalid byte sequences are
// replaced with U+FFFD. Input that is not base64 at all is returned as-is,
// also made valid.
func decodeBase64(s string) string {
	// SOAP::Lite folds long base64 payloads across lines
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	raw, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(compact, "="))
		if err != nil {
			return strings.ToValidUTF8(s, "�")
		}
	}
	return strings.ToValidUTF8(string(raw), "�")
}
