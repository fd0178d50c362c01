package debbugs_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/smnsjas/go-debbugs/xmltree"
)

// A fake Debbugs SOAP endpoint. It records every call and answers with
// whatever the test's handler returns.

const (
	soapHead = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
		` xmlns:apachens="http://xml.apache.org/xml-soap"` +
		` xmlns:soapenc="http://schemas.xmlsoap.org/soap/encoding/"` +
		` xmlns:xsd="http://www.w3.org/2001/XMLSchema"` +
		` soap:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"` +
		` xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>`
	soapTail = `</soap:Body></soap:Envelope>`
)

type call struct {
	Method string
	Args   []*xmltree.Element
	Header http.Header
	Host   string
}

type reply struct {
	Status      int    // 200 when zero
	ContentType string // text/xml when empty
	Body        string
}

type fakeServer struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []call
	handle func(call) reply
}

func newFakeServer(t *testing.T, handle func(call) reply) *fakeServer {
	t.Helper()
	fs := &fakeServer{handle: handle}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	root, err := xmltree.Parse(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body := root.Child("Body")
	if body == nil || body.FirstChild() == nil {
		http.Error(w, "no call in body", http.StatusBadRequest)
		return
	}

	el := body.FirstChild()
	c := call{
		Method: el.Name.Local,
		Args:   el.Children,
		Header: r.Header.Clone(),
		Host:   r.Host,
	}
	fs.mu.Lock()
	fs.calls = append(fs.calls, c)
	fs.mu.Unlock()

	rep := fs.handle(c)
	if rep.Status == 0 {
		rep.Status = http.StatusOK
	}
	if rep.ContentType == "" {
		rep.ContentType = `text/xml; charset=utf-8`
	}
	w.Header().Set("Content-Type", rep.ContentType)
	w.WriteHeader(rep.Status)
	_, _ = io.WriteString(w, rep.Body)
}

func (fs *fakeServer) Calls() []call {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]call(nil), fs.calls...)
}

func soapResponse(method, result string) reply {
	return reply{Body: soapHead +
		`<` + method + `Response xmlns="Debbugs/SOAP/V1">` + result + `</` + method + `Response>` +
		soapTail}
}

func soapFault(code, message string) reply {
	return reply{
		Status: http.StatusInternalServerError,
		Body: soapHead + `<soap:Fault>` +
			`<faultcode>` + code + `</faultcode>` +
			`<faultstring>` + message + `</faultstring>` +
			`</soap:Fault>` + soapTail,
	}
}

func intArray(ids ...int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<soapenc:Array soapenc:arrayType="xsd:int[%d]" xsi:type="soapenc:Array">`, len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, `<item xsi:type="xsd:int">%d</item>`, id)
	}
	b.WriteString(`</soapenc:Array>`)
	return b.String()
}

// statusMap renders get_status records for ids as an apachens:Map.
func statusMap(ids ...int) string {
	var b strings.Builder
	b.WriteString(`<s-gensym3 xsi:type="apachens:Map">`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<item><key xsi:type="xsd:int">%d</key><value>`+
			`<bug_num xsi:type="xsd:int">%d</bug_num>`+
			`<package xsi:type="xsd:string">foo</package>`+
			`<subject xsi:type="xsd:string">bug %d</subject>`+
			`<severity xsi:type="xsd:string">normal</severity>`+
			`<tags xsi:type="xsd:string">patch</tags>`+
			`<done xsi:type="xsd:string"></done>`+
			`<archived xsi:type="xsd:int">0</archived>`+
			`<mergedwith xsi:type="xsd:string"></mergedwith>`+
			`<found_versions soapenc:arrayType="xsd:string[1]" xsi:type="soapenc:Array"><item xsi:type="xsd:string">1.0-1</item></found_versions>`+
			`<fixed_versions soapenc:arrayType="xsd:anyType[0]" xsi:type="soapenc:Array"/>`+
			`<date xsi:type="xsd:int">1214006400</date>`+
			`<log_modified xsi:type="xsd:int">1214092800</log_modified>`+
			`</value></item>`, id, id, id)
	}
	b.WriteString(`</s-gensym3>`)
	return b.String()
}

// argInts reads the integers of an array argument.
func argInts(t *testing.T, el *xmltree.Element) []int {
	t.Helper()
	ids := make([]int, 0, len(el.Children))
	for _, item := range el.Children {
		n, err := strconv.Atoi(item.Text)
		if err != nil {
			t.Errorf("array item %q is not an integer", item.Text)
			continue
		}
		ids = append(ids, n)
	}
	return ids
}

func seq(from, n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = from + i
	}
	return ids
}
