package server

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/kqserve/httpserver/internal/sendqueue"
)

// acceptConnections drains the accept backlog on the listening socket,
// registering a Client and arming read-interest for each new connection.
func (s *Server) acceptConnections() {
	for {
		fd, sa, err := unix.Accept(s.listenFD)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			s.log.Warnf("accept error: %v", err)
			return
		}

		if err := unix.SetNonblock(fd, true); err != nil {
			s.log.Warnf("failed to set client fd non-blocking: %v", err)
			unix.Close(fd)
			continue
		}

		peer := peerString(sa)
		connID := newConnID()
		client := sendqueue.NewClient(fd, peer, connID)
		s.clients[fd] = client

		if err := s.notifier.Add(fd, true, false); err != nil {
			s.log.Warnf("failed to register client fd: %v", err)
			delete(s.clients, fd)
			unix.Close(fd)
			continue
		}

		if s.metrics != nil {
			s.metrics.Connections.WithLabelValues("accepted").Inc()
		}
		s.log.WithField("conn", connID).Debugf("accepted connection from %s", peer)
	}
}

func peerString(sa unix.Sockaddr) string {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", addr.Addr[0], addr.Addr[1], addr.Addr[2], addr.Addr[3], addr.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%x]:%d", addr.Addr, addr.Port)
	default:
		return "unknown"
	}
}

// disconnectClient tears down a client connection: deregisters it from
// the notifier and closes its fd. When eraseFromTable is false the
// caller is responsible for clearing
// the table afterward (used by Stop, to avoid invalidating iteration).
func (s *Server) disconnectClient(client *sendqueue.Client, eraseFromTable bool) {
	fd := client.FD()
	_ = s.notifier.Remove(fd)
	unix.Close(fd)
	if eraseFromTable {
		delete(s.clients, fd)
	}
	s.log.WithField("conn", client.ConnID()).Debugf("disconnected %s", client.Peer())
}
