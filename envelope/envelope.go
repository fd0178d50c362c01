// Package envelope wraps SOAP 1.1 requests to the Debbugs server and
// unwraps its responses.
//
// # Request Shape
//
// A request names a single method in the Debbugs namespace and carries its
// arguments as sibling <arg> elements, each encoded by package soapenc:
//
//	<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"
//	    xmlns:ns1="Debbugs/SOAP/V1" ...
//	    soap:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
//	  <soap:Body>
//	    <ns1:newest_bugs>
//	      <arg xsi:type="xs:int">10</arg>
//	    </ns1:newest_bugs>
//	  </soap:Body>
//	</soap:Envelope>
//
// # Response Shape
//
// The server answers with Body/{method}Response/{result}. The name of the
// result element varies (SOAP::Lite generates names such as s-gensym3), so
// only its position is significant. A Body/Fault element is reported as a
// *Fault.
package envelope

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/smnsjas/go-debbugs/soapenc"
	"github.com/smnsjas/go-debbugs/xmltree"
)

// Namespaces used on the wire.
const (
	NamespaceSOAP    = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceDebbugs = "Debbugs/SOAP/V1"
)

const (
	prefixSOAP    = "soap"
	prefixDebbugs = "ns1"

	argName = "arg"
)

// Method is the name of a remote Debbugs operation.
type Method string

// Debbugs SOAP methods.
const (
	// GetStatus returns status records for a batch of bug numbers.
	GetStatus Method = "get_status"
	// GetUsertag returns the bugs a user has tagged, keyed by tag.
	GetUsertag Method = "get_usertag"
	// GetBugLog returns the messages that make up a bug's history.
	GetBugLog Method = "get_bug_log"
	// NewestBugs returns the most recently filed bug numbers.
	NewestBugs Method = "newest_bugs"
	// GetBugs returns bug numbers matching key/value criteria.
	GetBugs Method = "get_bugs"
)

func (m Method) String() string { return string(m) }

var (
	// ErrFault matches every *Fault.
	ErrFault = errors.New("SOAP fault")
	// ErrInvalidEnvelope is returned when a response is not a SOAP envelope.
	ErrInvalidEnvelope = errors.New("invalid SOAP envelope")
)

// Fault is a SOAP fault returned by the server.
type Fault struct {
	Code    string // faultcode, e.g. "soap:Server"
	Message string // faultstring, verbatim
	Detail  string // text of the detail element, if any
}

func (f *Fault) Error() string {
	if f.Code == "" {
		return fmt.Sprintf("soap fault: %s", f.Message)
	}
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.Message)
}

// Is reports whether target is ErrFault.
func (f *Fault) Is(target error) bool { return target == ErrFault }

// EncodeRequest builds the request document for method with the given
// arguments. No XML declaration is written.
func EncodeRequest(method Method, args ...any) ([]byte, error) {
	call := xmltree.New(prefixDebbugs, string(method))
	for i, arg := range args {
		el, err := soapenc.Encode(argName, arg)
		if err != nil {
			return nil, fmt.Errorf("encode %s argument %d: %w", method, i, err)
		}
		call.Append(el)
	}

	attrs := []xml.Attr{
		xmltree.Attr("xmlns", prefixSOAP, NamespaceSOAP),
		xmltree.Attr("xmlns", prefixDebbugs, NamespaceDebbugs),
	}
	attrs = append(attrs, soapenc.NamespaceAttrs()...)
	attrs = append(attrs, xmltree.Attr(prefixSOAP, "encodingStyle", soapenc.NamespaceSOAPENC))

	env := xmltree.New(prefixSOAP, "Envelope", attrs...).Append(
		xmltree.New(prefixSOAP, "Body").Append(call),
	)
	return xmltree.Marshal(env)
}

// DecodeResponse extracts the result value from a response document.
//
// A Fault in the body is returned as a *Fault. A response without a result
// element decodes to nil with no error.
func DecodeResponse(data []byte) (soapenc.Value, error) {
	body, err := parseBody(data)
	if err != nil {
		return nil, err
	}

	resp := body.FirstChild()
	if resp == nil {
		return nil, nil
	}
	if resp.Name.Local == "Fault" {
		return nil, parseFault(resp)
	}

	result := resp.FirstChild()
	if result == nil {
		return nil, nil
	}

	v, err := soapenc.Decode(result)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", resp.Name.Local, err)
	}
	return v, nil
}

// FaultOf returns the fault carried by data, or nil when data is a SOAP
// envelope without a fault or not an envelope at all.
func FaultOf(data []byte) *Fault {
	body, err := parseBody(data)
	if err != nil {
		return nil
	}
	if el := body.FirstChild(); el != nil && el.Name.Local == "Fault" {
		return parseFault(el)
	}
	return nil
}

func parseBody(data []byte) (*xmltree.Element, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if root.Name.Local != "Envelope" {
		return nil, fmt.Errorf("%w: root element is <%s>", ErrInvalidEnvelope, root.Name.Local)
	}
	body := root.Child("Body")
	if body == nil {
		return nil, fmt.Errorf("%w: no Body element", ErrInvalidEnvelope)
	}
	return body, nil
}

func parseFault(el *xmltree.Element) *Fault {
	f := &Fault{}
	if c := el.Child("faultcode"); c != nil {
		f.Code = strings.TrimSpace(c.Text)
	}
	if c := el.Child("faultstring"); c != nil {
		f.Message = c.Text
	}
	if c := el.Child("detail"); c != nil {
		f.Detail = strings.TrimSpace(c.Text)
	}
	return f
}
