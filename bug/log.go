package bug

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/smnsjas/go-debbugs/soapenc"
)

// ErrUnknownCharset is returned when a message declares a character set
// that cannot be converted to UTF-8.
var ErrUnknownCharset = errors.New("unknown charset")

// Log is one message from a bug's history.
type Log struct {
	Header      string
	Body        string
	MsgNum      int
	Attachments []string // the server never fills this in
	Message     *mail.Message
}

// ParseLogs turns a decoded get_bug_log result into entries, in server
// order.
func ParseLogs(v soapenc.Value) ([]*Log, error) {
	switch val := v.(type) {
	case nil:
		return []*Log{}, nil

	case soapenc.Text:
		if strings.TrimSpace(string(val)) == "" {
			return []*Log{}, nil
		}

	case soapenc.Map:
		if len(val) == 0 {
			return []*Log{}, nil
		}
		// A single entry sent without the surrounding array.
		l, err := ParseLog(val)
		if err != nil {
			return nil, err
		}
		return []*Log{l}, nil

	case soapenc.List:
		logs := make([]*Log, 0, len(val))
		for i, item := range val {
			l, err := ParseLog(item)
			if err != nil {
				return nil, fmt.Errorf("log entry %d: %w", i, err)
			}
			logs = append(logs, l)
		}
		return logs, nil
	}
	return nil, fmt.Errorf("%w: bug log is %s", soapenc.ErrUnexpectedShape, soapenc.Describe(v))
}

// ParseLog builds a Log from one decoded entry.
func ParseLog(v soapenc.Value) (*Log, error) {
	m, ok := v.(soapenc.Map)
	if !ok {
		return nil, fmt.Errorf("%w: log entry is %s, want map", soapenc.ErrUnexpectedShape, soapenc.Describe(v))
	}

	header, err := logText(m, "header")
	if err != nil {
		return nil, err
	}
	body, err := logText(m, "body")
	if err != nil {
		return nil, err
	}
	numText, err := logText(m, "msg_num")
	if err != nil {
		return nil, err
	}
	msgNum, err := strconv.Atoi(strings.TrimSpace(numText))
	if err != nil {
		return nil, fmt.Errorf("%w: msg_num %q is not an integer", soapenc.ErrUnexpectedShape, numText)
	}

	return &Log{
		Header:      header,
		Body:        body,
		MsgNum:      msgNum,
		Attachments: []string{},
		Message:     NewMessage(header, body),
	}, nil
}

func logText(m soapenc.Map, field string) (string, error) {
	v, _ := m.Get(field)
	switch val := v.(type) {
	case nil:
		return "", nil
	case soapenc.Text:
		return string(val), nil
	case soapenc.Map:
		if len(val) == 0 {
			return "", nil
		}
	}
	return "", fmt.Errorf("%w: %s is %s, want text", soapenc.ErrUnexpectedShape, field, soapenc.Describe(v))
}

// NewMessage parses header and body as one mail message, joined by a
// blank line. A header block that does not parse leaves the message with
// no headers and the whole text as its body.
func NewMessage(header, body string) *mail.Message {
	raw := header + "\n\n" + body
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return &mail.Message{Header: mail.Header{}, Body: strings.NewReader(raw)}
	}
	return msg
}

// Subject returns the decoded Subject header.
func (l *Log) Subject() string {
	s := l.Message.Header.Get("Subject")
	if dec, err := DecodeHeader(s); err == nil {
		return dec
	}
	return s
}

// From returns the sender address with its display name decoded.
func (l *Log) From() (*mail.Address, error) {
	parser := mail.AddressParser{WordDecoder: wordDecoder()}
	return parser.Parse(l.Message.Header.Get("From"))
}

// Date returns the Date header.
func (l *Log) Date() (time.Time, error) {
	return l.Message.Header.Date()
}

// Text returns the message body as UTF-8. Transfer encodings are undone
// and the declared charset is converted. For multipart messages the first
// text/plain part is returned, or the first text part of any kind.
func (l *Log) Text() (string, error) {
	h := l.Message.Header
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return multipartText(l.Body, params["boundary"])
	}

	data, err := decodeTransfer([]byte(l.Body), h.Get("Content-Transfer-Encoding"))
	if err != nil {
		return "", err
	}
	return decodeCharset(data, params["charset"])
}

func multipartText(body, boundary string) (string, error) {
	if boundary == "" {
		return "", errors.New("multipart message without boundary")
	}

	var fallback *string
	mr := multipart.NewReader(strings.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read multipart body: %w", err)
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType, params = "text/plain", map[string]string{}
		}
		if !strings.HasPrefix(mediaType, "text/") {
			continue
		}

		raw, err := io.ReadAll(part)
		if err != nil {
			return "", fmt.Errorf("read multipart part: %w", err)
		}
		data, err := decodeTransfer(raw, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return "", err
		}
		text, err := decodeCharset(data, params["charset"])
		if err != nil {
			return "", err
		}

		if mediaType == "text/plain" {
			return text, nil
		}
		if fallback == nil {
			fallback = &text
		}
	}

	if fallback != nil {
		return *fallback, nil
	}
	return "", nil
}

func decodeTransfer(data []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("decode quoted-printable: %w", err)
		}
		return out, nil

	case "base64":
		compact := strings.Join(strings.Fields(string(data)), "")
		out, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return nil, fmt.Errorf("decode base64 body: %w", err)
		}
		return out, nil
	}
	return data, nil
}

func decodeCharset(data []byte, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "us-ascii", "utf-8", "utf8":
		return strings.ToValidUTF8(string(data), "�"), nil
	}

	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil || enc == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownCharset, charset)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("convert from %s: %w", charset, err)
	}
	return string(out), nil
}

// DecodeHeader decodes RFC 2047 encoded words in s, in any charset known
// to golang.org/x/text.
func DecodeHeader(s string) (string, error) {
	return wordDecoder().DecodeHeader(s)
}

func wordDecoder() *mime.WordDecoder {
	return &mime.WordDecoder{
		CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
			enc, err := ianaindex.MIME.Encoding(charset)
			if err != nil || enc == nil {
				return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, charset)
			}
			return transform.NewReader(input, enc.NewDecoder()), nil
		},
	}
}
