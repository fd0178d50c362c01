// Package xmltree is a small in-memory XML element tree.
//
// encoding/xml offers streaming tokens and struct mapping but no document
// model. The SOAP codec needs to look at an element's attributes, text and
// children before deciding how to interpret it, so responses are first
// parsed into a tree of *Element values and requests are assembled as a tree
// before being written out.
//
// # Names
//
// Parsed elements carry the namespace URI in Name.Space, exactly as
// encoding/xml reports it. Elements built for output carry the namespace
// prefix in Name.Space instead, and the caller is responsible for declaring
// that prefix with an xmlns attribute somewhere up the tree:
//
//	env := xmltree.New("soap", "Envelope",
//		xmltree.Attr("xmlns", "soap", "http://schemas.xmlsoap.org/soap/envelope/"))
//	env.Append(xmltree.New("soap", "Body"))
//	data, err := xmltree.Marshal(env)
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// ErrInvalidXML is returned when a document cannot be parsed.
var ErrInvalidXML = errors.New("invalid XML")

// Element is a single XML element with its attributes, character data and
// child elements.
type Element struct {
	Name     xml.Name
	Attr     []xml.Attr
	Text     string
	Children []*Element
}

// New creates an element for output. prefix may be empty.
func New(prefix, local string, attrs ...xml.Attr) *Element {
	return &Element{
		Name: xml.Name{Space: prefix, Local: local},
		Attr: attrs,
	}
}

// Attr creates an attribute for output. prefix may be empty.
func Attr(prefix, local, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Space: prefix, Local: local}, Value: value}
}

// Append adds children to e and returns e.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// SetText sets the character data of e and returns e.
func (e *Element) SetText(s string) *Element {
	e.Text = s
	return e
}

// AttrValue returns the value of the first attribute with the given local
// name whose namespace is one of spaces. With no spaces any namespace
// matches.
func (e *Element) AttrValue(local string, spaces ...string) (string, bool) {
	for _, a := range e.Attr {
		if a.Name.Local != local {
			continue
		}
		if len(spaces) == 0 {
			return a.Value, true
		}
		for _, s := range spaces {
			if a.Name.Space == s {
				return a.Value, true
			}
		}
	}
	return "", false
}

// Child returns the first child element with the given local name.
func (e *Element) Child(local string) *Element {
	for _, c := range e.Children {
		if c.Name.Local == local {
			return c
		}
	}
	return nil
}

// FirstChild returns the first child element, or nil.
func (e *Element) FirstChild() *Element {
	if len(e.Children) == 0 {
		return nil
	}
	return e.Children[0]
}

// Parse reads a whole document and returns its root element.
func Parse(data []byte) (*Element, error) {
	// Strip UTF-8 BOM if present
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	var (
		root  *Element
		stack []*Element
		text  []*strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidXML, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name, Attr: t.Copy().Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else if root == nil {
				root = el
			} else {
				return nil, fmt.Errorf("%w: multiple root elements", ErrInvalidXML)
			}
			stack = append(stack, el)
			text = append(text, &strings.Builder{})

		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}

		case xml.EndElement:
			el := stack[len(stack)-1]
			el.Text = text[len(text)-1].String()
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrInvalidXML)
	}
	return root, nil
}

// charsetReader converts documents whose XML declaration names a charset
// other than UTF-8.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unknown charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Marshal writes e and its descendants. No XML declaration is emitted.
func Marshal(e *Element) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Element) encode(buf *bytes.Buffer) error {
	if e.Name.Local == "" {
		return fmt.Errorf("%w: element without a name", ErrInvalidXML)
	}
	name := qualified(e.Name)

	buf.WriteByte('<')
	buf.WriteString(name)
	for _, a := range e.Attr {
		buf.WriteByte(' ')
		buf.WriteString(qualified(a.Name))
		buf.WriteString(`="`)
		if err := xml.EscapeText(buf, []byte(a.Value)); err != nil {
			return fmt.Errorf("escape attribute %s: %w", qualified(a.Name), err)
		}
		buf.WriteByte('"')
	}

	if e.Text == "" && len(e.Children) == 0 {
		buf.WriteString("/>")
		return nil
	}
	buf.WriteByte('>')

	if err := xml.EscapeText(buf, []byte(e.Text)); err != nil {
		return fmt.Errorf("escape text of %s: %w", name, err)
	}
	for _, c := range e.Children {
		if err := c.encode(buf); err != nil {
			return err
		}
	}

	buf.WriteString("</")
	buf.WriteString(name)
	buf.WriteByte('>')
	return nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
