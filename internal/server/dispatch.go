package server

import (
	"strconv"
	"time"

	"github.com/kqserve/httpserver/internal/resource"
	"github.com/kqserve/httpserver/internal/sendqueue"
	"github.com/kqserve/httpserver/internal/wire"
)

// allowedMethods is the value of the Allow header on an OPTIONS
// response.
const allowedMethods = "HEAD, GET, OPTIONS, TRACE"

// handleRequest resolves the target ResourceHost and dispatches on
// method.
func (s *Server) handleRequest(client *sendqueue.Client, req *wire.Request) {
	host, ok := s.resolveHost(req)
	if !ok {
		s.sendStatus(client, 400, "Invalid/No Host specified")
		return
	}

	switch req.Method {
	case wire.MethodGET, wire.MethodHEAD:
		s.handleGetOrHead(client, req, host)
	case wire.MethodOPTIONS:
		s.handleOptions(client, req)
	case wire.MethodTRACE:
		s.handleTrace(client, req)
	default:
		s.sendStatus(client, 501, "")
	}
}

// resolveHost picks the ResourceHost for req: HTTP/1.1 requests resolve
// by Host header, HTTP/1.0 requests fall back to the first configured
// host since they carry no Host header to resolve by.
func (s *Server) resolveHost(req *wire.Request) (*resource.Host, bool) {
	if req.Version == "1.1" {
		hostport, ok := req.HostPort(s.port)
		if !ok {
			return nil, false
		}
		host, ok := s.vhosts[hostport]
		return host, ok
	}

	// HTTP/1.0: use the first configured host.
	if len(s.hosts) == 0 {
		return nil, false
	}
	return s.hosts[0], true
}

// handleGetOrHead resolves the request URI to a Resource and writes it
// out, omitting the body for HEAD.
func (s *Server) handleGetOrHead(client *sendqueue.Client, req *wire.Request, host *resource.Host) {
	res, err := host.Get(req.URI)
	if err != nil {
		s.sendStatus(client, 404, "")
		return
	}

	resp := wire.NewResponse(200).
		SetHeader("Content-Type", res.MimeType).
		SetHeader("Content-Length", strconv.Itoa(res.Size()))

	if req.Method == wire.MethodGET {
		resp.SetBody(res.Bytes)
	}

	s.enqueueResponse(client, resp, req.ConnectionClose(), req.Method.String())
}

// handleOptions answers with the allowed method list and no body.
func (s *Server) handleOptions(client *sendqueue.Client, req *wire.Request) {
	resp := wire.NewResponse(200).
		SetHeader("Allow", allowedMethods).
		SetHeader("Content-Length", "0")
	s.enqueueResponse(client, resp, true, req.Method.String())
}

// handleTrace echoes the raw request bytes back as the response body.
func (s *Server) handleTrace(client *sendqueue.Client, req *wire.Request) {
	resp := wire.NewResponse(200).
		SetHeader("Content-Type", "message/http").
		SetHeader("Content-Length", strconv.Itoa(req.Size())).
		SetBody(req.Raw)
	s.enqueueResponse(client, resp, true, req.Method.String())
}

// sendStatus writes a bare status response with an optional plain-text
// reason appended to the body, and always closes the connection after.
func (s *Server) sendStatus(client *sendqueue.Client, code int, msg string) {
	body := wire.ReasonPhrase(code)
	if msg != "" {
		body += ": " + msg
	}
	resp := wire.NewResponse(code).
		SetHeader("Content-Type", "text/plain").
		SetHeader("Content-Length", strconv.Itoa(len(body))).
		SetBody([]byte(body))
	s.enqueueResponse(client, resp, true, "")
}

// enqueueResponse serializes resp and appends it to the client's send
// queue, recording request metrics if enabled.
func (s *Server) enqueueResponse(client *sendqueue.Client, resp *wire.Response, disconnectAfter bool, method string) {
	bytes := resp.Serialize(time.Now(), disconnectAfter)
	client.Enqueue(sendqueue.NewItem(bytes, disconnectAfter))

	if s.metrics != nil {
		s.metrics.Requests.WithLabelValues(method, strconv.Itoa(resp.Status())).Inc()
	}
}
