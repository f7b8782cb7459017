package server

import (
	"golang.org/x/sys/unix"

	"github.com/kqserve/httpserver/internal/sendqueue"
	"github.com/kqserve/httpserver/internal/wire"
)

// writeTrickle is the minimum chunk size attempted when the caller-hinted
// size was zero.
const writeTrickle = 64

// writeMax is the upper bound on a single send.
const writeMax = 1400

// readClient reads one batch of bytes from the client and parses it as a
// single request. A request split across recv calls is not reassembled;
// each readable event is one parse attempt against whatever arrived.
func (s *Server) readClient(client *sendqueue.Client, hint int) {
	size := hint
	if size < 1400 {
		size = 1400
	}
	buf := make([]byte, size)

	n, err := unix.Read(client.FD(), buf)
	switch {
	case n == 0 && err == nil:
		s.disconnectClient(client, true)
		return
	case err != nil:
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		s.disconnectClient(client, true)
		return
	}

	req, parseErr := wire.Parse(buf[:n])
	if parseErr != nil {
		s.log.WithField("conn", client.ConnID()).Warnf("parse failure from %s: %v", client.Peer(), parseErr)
		s.sendStatus(client, 400, parseErr.Error())
		return
	}
	s.handleRequest(client, req)
}

// writeClient drains as much of the front send-queue item as the hinted
// size allows.
func (s *Server) writeClient(client *sendqueue.Client, hint int) bool {
	if hint > writeMax {
		hint = writeMax
	}
	if hint == 0 {
		hint = writeTrickle
	}

	item := client.Peek()
	if item == nil {
		return false
	}

	remaining := item.Remaining()
	attempt := hint
	if attempt > len(remaining) {
		attempt = len(remaining)
	}

	n, err := unix.Write(client.FD(), remaining[:attempt])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return true
		}
		s.disconnectClient(client, true)
		return false
	}

	item.Advance(n)
	if s.metrics != nil {
		s.metrics.BytesSent.Add(float64(n))
	}

	disconnect := false
	if item.Drained() {
		disconnect = item.DisconnectAfter()
		client.PopFront()
	}

	if disconnect {
		s.disconnectClient(client, true)
		return false
	}

	return client.QueueLen() > 0
}
