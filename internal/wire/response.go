package wire

import (
	"bytes"
	"fmt"
	"net/textproto"
	"sort"
	"time"
)

// reasonPhrases owns the status code -> reason phrase mapping.
var reasonPhrases = map[int]string{
	200: "OK",
	400: "Bad Request",
	404: "Not Found",
	501: "Not Implemented",
}

// ReasonPhrase returns the standard reason phrase for code, or "Unknown"
// if code is not one this server ever emits.
func ReasonPhrase(code int) string {
	if phrase, ok := reasonPhrases[code]; ok {
		return phrase
	}
	return "Unknown"
}

// Response is a builder for a single HTTP response message.
type Response struct {
	status  int
	headers textproto.MIMEHeader
	body    []byte
}

// NewResponse starts a new Response with the given status code.
func NewResponse(status int) *Response {
	return &Response{
		status:  status,
		headers: make(textproto.MIMEHeader),
	}
}

// SetHeader sets a response header, replacing any existing value.
func (r *Response) SetHeader(name, value string) *Response {
	r.headers.Set(name, value)
	return r
}

// SetBody sets the response body.
func (r *Response) SetBody(body []byte) *Response {
	r.body = body
	return r
}

// Status returns the response's status code.
func (r *Response) Status() int {
	return r.status
}

// httpDateFormat renders an RFC 1123 timestamp with the literal "GMT"
// zone RFC 7231 requires for HTTP-date; time.RFC1123's "MST" verb would
// print the Location's name ("UTC") instead when fed a UTC time.
const httpDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// frame injects the headers every response carries: Server, Date, and
// (when the caller asked for it) Connection: close.
func (r *Response) frame(now time.Time, disconnectAfter bool) {
	r.headers.Set("Server", "httpserver/1.0")
	r.headers.Set("Date", now.UTC().Format(httpDateFormat))
	if disconnectAfter {
		r.headers.Set("Connection", "close")
	}
}

// Serialize renders the response to its wire bytes, injecting the
// standard Server/Date/Connection headers first.
func (r *Response) Serialize(now time.Time, disconnectAfter bool) []byte {
	r.frame(now, disconnectAfter)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", r.status, ReasonPhrase(r.status))

	names := make([]string, 0, len(r.headers))
	for name := range r.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range r.headers[name] {
			fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
		}
	}
	buf.WriteString("\r\n")
	buf.Write(r.body)
	return buf.Bytes()
}
