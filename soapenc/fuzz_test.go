package soapenc

import (
	"strconv"
	"testing"
	"unicode/utf8"

	"github.com/smnsjas/go-debbugs/xmltree"
)

func FuzzDecode(f *testing.F) {
	f.Add([]byte(`<v xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="xsd:string">test</v>`))
	f.Add([]byte(`<v xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="soapenc:Array"><item xsi:type="xsd:int">1</item></v>`))
	f.Add([]byte(`<v xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="apachens:Map"><item><key/><value/></item></v>`))
	f.Add([]byte(`<v><a><b>deep</b></a></v>`))
	f.Add([]byte("garbage data"))

	f.Fuzz(func(_ *testing.T, data []byte) {
		root, err := xmltree.Parse(data)
		if err != nil {
			return
		}
		// Errors are expected for odd input, panics are not.
		_, _ = Decode(root)
	})
}

// isXMLChar reports whether r may appear in an XML 1.0 document.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

func FuzzRoundTripString(f *testing.F) {
	f.Add("hello world")
	f.Add("")
	f.Add("<xml>stuff</xml>")
	f.Add("!@#$%^&*()")
	f.Add("line1\r\nline2")
	f.Add("Ondřej Nový")
	f.Add("\U0001F600 emoji")

	f.Fuzz(func(t *testing.T, s string) {
		if !utf8.ValidString(s) {
			return
		}
		for _, r := range s {
			if !isXMLChar(r) {
				return
			}
		}

		got := roundTrip(t, s)
		if got != Text(s) {
			t.Errorf("round trip mismatch: got %#v, want %q", got, s)
		}
	})
}

func FuzzRoundTripInt(f *testing.F) {
	f.Add(int64(0))
	f.Add(int64(486212))
	f.Add(int64(-1))

	f.Fuzz(func(t *testing.T, i int64) {
		got := roundTrip(t, i)
		want := Text(strconv.FormatInt(i, 10))
		if got != want {
			t.Errorf("round trip mismatch: got %#v, want %q", got, want)
		}
	})
}
