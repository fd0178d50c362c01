// Package soapenc implements the subset of SOAP section 5 encoding spoken by
// the Debbugs SOAP interface.
//
// Debbugs is served by a Perl SOAP::Lite server whose type annotations are
// inconsistent: the same logical field may arrive as a typed string, a
// base64Binary blob, an apache Map or an untyped element whose children act
// as struct members. This package absorbs that variation instead of forcing
// a schema onto it. Decoded data is represented by the closed sum type
// Value with three variants:
//
//   - Text: every scalar. Numbers are not converted, the server does not
//     reliably distinguish them from strings.
//   - List: soapenc:Array.
//   - Map: apachens:Map and untyped "anonymous struct" elements, in
//     document order.
//
// A nil Value means the element was absent.
//
// # Wire Shapes
//
// Encoding produces:
//
//	<name xsi:type="xs:string">text</name>
//	<name xsi:type="xs:int">42</name>
//	<name xsi:type="soapenc:Array" soapenc:arrayType="xs:anyType[2]">
//	  <item xsi:type="xs:string">a</item>
//	  <item xsi:type="xs:int">1</item>
//	</name>
//
// Mappings are sent as arrays of alternating keys and values, which is how
// the server expects multi-criteria queries.
//
// Decoding dispatches on the local part of the xsi:type attribute:
//
//	string, int, float   Text (raw content)
//	base64Binary         Text (decoded, invalid UTF-8 replaced)
//	Array                List
//	Map                  Map (children are <item><key/><value/></item>)
//	(none)               Map keyed by child element names, or Text
//	                     when the element has no children but has text
package soapenc

import (
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/smnsjas/go-debbugs/xmltree"
)

// XML namespaces used by the encoding.
const (
	NamespaceXSI     = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceXSD     = "http://www.w3.org/2001/XMLSchema"
	NamespaceSOAPENC = "http://schemas.xmlsoap.org/soap/encoding/"
	NamespaceApache  = "http://xml.apache.org/xml-soap"
)

// Prefixes written on encoded elements. NamespaceAttrs declares them.
const (
	PrefixXSI     = "xsi"
	PrefixXSD     = "xs"
	PrefixSOAPENC = "soapenc"
)

// DefaultMaxDepth is the default limit for nested Arrays, Maps and structs.
const DefaultMaxDepth = 100

var (
	// ErrUnsupportedType is returned for Go values that cannot be encoded
	// and for xsi:type annotations the decoder does not know.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrMalformedMap is returned when a Map entry is not a key/value pair.
	ErrMalformedMap = errors.New("malformed map entry")
	// ErrUnexpectedShape is returned when a decoded value cannot be coerced
	// into the shape a caller asked for.
	ErrUnexpectedShape = errors.New("unexpected value shape")
	// ErrMaxDepth is returned when nesting exceeds the decoder's limit.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")
)

// EncodingError reports a Go value that cannot be put on the wire.
type EncodingError struct {
	Name  string // element name the value was destined for
	Value any
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("soapenc: encode %q: %v: %T", e.Name, e.Err, e.Value)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports response XML the codec does not understand.
type DecodingError struct {
	Element string // local name of the offending element
	Type    string // xsi:type annotation, if any
	Err     error
}

func (e *DecodingError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("soapenc: decode <%s> (type %q): %v", e.Element, e.Type, e.Err)
	}
	return fmt.Sprintf("soapenc: decode <%s>: %v", e.Element, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// Value is a decoded SOAP value: Text, List or Map.
type Value interface {
	soapValue()
}

// Text is a scalar value.
type Text string

// List is a decoded soapenc:Array.
type List []Value

// Field is one member of a Map.
type Field struct {
	Name  string
	Value Value
}

// Map is a decoded mapping or anonymous struct, in document order.
type Map []Field

func (Text) soapValue() {}
func (List) soapValue() {}
func (Map) soapValue()  {}

// String returns the text.
func (t Text) String() string { return string(t) }

// Get returns the value stored under name. If the name occurs more than
// once the last occurrence wins.
func (m Map) Get(name string) (Value, bool) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i].Name == name {
			return m[i].Value, true
		}
	}
	return nil, false
}

// Keys returns the field names in document order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for _, f := range m {
		keys = append(keys, f.Name)
	}
	return keys
}

// NamespaceAttrs returns xmlns declarations for the prefixes used by
// Encode. They belong on an ancestor of the encoded elements.
func NamespaceAttrs() []xml.Attr {
	return []xml.Attr{
		xmltree.Attr("xmlns", PrefixXSI, NamespaceXSI),
		xmltree.Attr("xmlns", PrefixXSD, NamespaceXSD),
		xmltree.Attr("xmlns", PrefixSOAPENC, NamespaceSOAPENC),
	}
}
