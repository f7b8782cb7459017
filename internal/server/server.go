// Package server implements HTTPServer: the listening socket, the
// per-client table, the vhost table, and the single-threaded
// readiness-driven event loop that accepts connections, parses
// requests, and drains send queues.
package server

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/kqserve/httpserver/internal/metrics"
	"github.com/kqserve/httpserver/internal/notify"
	"github.com/kqserve/httpserver/internal/resource"
	"github.com/kqserve/httpserver/internal/sendqueue"
)

// maxAliasLen rejects vhost aliases that are unreasonably long.
const maxAliasLen = 122

// waitTimeout bounds each event-loop iteration's notifier wait.
const waitTimeout = 2 * time.Second

// recvHint is the minimum buffer size allocated per read.
const recvHint = 1400

// Server owns the listening socket, the readiness notifier, the client
// table and the vhost table, and runs the event loop.
type Server struct {
	log *logrus.Entry

	port     int
	listenFD int
	notifier notify.Notifier

	clients map[int]*sendqueue.Client
	hosts   []*resource.Host
	vhosts  map[string]*resource.Host

	canRun  atomic.Bool
	metrics *metrics.Registry
}

// New constructs a Server with a single ResourceHost rooted at diskpath,
// registered under localhost:port, 127.0.0.1:port, and each of
// vhostAliases as alias:port.
func New(log *logrus.Entry, vhostAliases []string, port int, diskpath string) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	host := resource.NewHost(diskpath)

	s := &Server{
		log:     log.WithField("component", "server"),
		port:    port,
		clients: make(map[int]*sendqueue.Client),
		hosts:   []*resource.Host{host},
		vhosts:  make(map[string]*resource.Host),
	}

	s.vhosts[hostPort("localhost", port)] = host
	s.vhosts[hostPort("127.0.0.1", port)] = host
	for _, alias := range vhostAliases {
		if len(alias) >= maxAliasLen {
			s.log.Warnf("rejecting vhost alias %q: length >= %d", alias, maxAliasLen)
			continue
		}
		s.vhosts[hostPort(alias, port)] = host
	}

	return s
}

// SetMetrics attaches an optional metrics registry the server updates as
// connections and requests are processed.
func (s *Server) SetMetrics(reg *metrics.Registry) {
	s.metrics = reg
}

// Start creates the listening socket, optionally drops privileges, and
// arms the readiness notifier.
func (s *Server) Start(dropUID, dropGID int) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return errors.Wrap(err, "socket")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return errors.Wrap(err, "setsockopt SO_REUSEADDR")
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return errors.Wrap(err, "set listen socket non-blocking")
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: s.port}); err != nil {
		unix.Close(fd)
		return errors.Wrapf(err, "bind 0.0.0.0:%d", s.port)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return errors.Wrap(err, "listen")
	}
	s.listenFD = fd

	if dropUID > 0 && dropGID > 0 {
		if err := unix.Setgid(dropGID); err != nil {
			return errors.Wrapf(err, "setgid(%d)", dropGID)
		}
		if err := unix.Setuid(dropUID); err != nil {
			return errors.Wrapf(err, "setuid(%d)", dropUID)
		}
		s.log.Infof("dropped privileges to uid=%d gid=%d", dropUID, dropGID)
	}

	notifier, err := notify.New()
	if err != nil {
		return errors.Wrap(err, "create readiness notifier")
	}
	s.notifier = notifier
	if err := s.notifier.Add(s.listenFD, true, false); err != nil {
		return errors.Wrap(err, "register listen fd")
	}

	s.canRun.Store(true)
	s.log.Infof("listening on 0.0.0.0:%d", s.port)
	return nil
}

// Running reports whether the event loop should keep iterating.
func (s *Server) Running() bool {
	return s.canRun.Load()
}

// Shutdown requests the event loop stop at the top of its next
// iteration. Safe to call from any goroutine (e.g. a signal handler).
func (s *Server) Shutdown() {
	s.canRun.Store(false)
}

// Run executes the event loop until Shutdown is called or Wait returns a
// fatal error.
func (s *Server) Run() error {
	for s.canRun.Load() {
		events, err := s.notifier.Wait(waitTimeout)
		if err != nil {
			return errors.Wrap(err, "notifier wait")
		}
		for _, ev := range events {
			s.handleEvent(ev)
		}
	}
	return nil
}

func (s *Server) handleEvent(ev notify.Event) {
	if ev.FD == s.listenFD {
		s.acceptConnections()
		return
	}

	client, ok := s.clients[ev.FD]
	if !ok {
		_ = s.notifier.Remove(ev.FD)
		unix.Close(ev.FD)
		return
	}

	if ev.Flags.Has(notify.EOF) {
		s.disconnectClient(client, true)
		return
	}

	if ev.Flags.Has(notify.Readable) {
		s.readClient(client, recvHint)
		if _, stillPresent := s.clients[ev.FD]; stillPresent {
			_ = s.notifier.Modify(ev.FD, false, true)
		}
	}

	if ev.Flags.Has(notify.Writable) {
		if _, stillPresent := s.clients[ev.FD]; !stillPresent {
			return
		}
		more := s.writeClient(client, recvHint)
		if !more {
			if _, stillPresent := s.clients[ev.FD]; stillPresent {
				_ = s.notifier.Modify(ev.FD, true, false)
			}
		}
	}
}

// Stop disconnects every live client and tears down the listening
// socket and notifier. Idempotent.
func (s *Server) Stop() {
	for _, client := range s.clients {
		s.disconnectClient(client, false)
	}
	s.clients = make(map[int]*sendqueue.Client)

	if s.listenFD != 0 {
		_ = s.notifier.Remove(s.listenFD)
		unix.Close(s.listenFD)
		s.listenFD = 0
	}
	if s.notifier != nil {
		_ = s.notifier.Close()
		s.notifier = nil
	}
	s.log.Infof("server stopped")
}

func hostPort(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}

func newConnID() string {
	return uuid.NewString()
}
