package server

import (
	"bufio"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// startTestServer boots a Server on an ephemeral port serving dir, and
// returns the port and a teardown func.
func startTestServer(t *testing.T, dir string) (int, func()) {
	t.Helper()

	// Find a free port by opening and immediately closing a listener.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := probe.Addr().(*net.TCPAddr).Port
	require.NoError(t, probe.Close())

	logger := logrus.NewEntry(logrus.New())
	logger.Logger.SetOutput(io.Discard)

	s := New(logger, []string{"example.test"}, port, dir)
	require.NoError(t, s.Start(0, 0))

	done := make(chan struct{})
	go func() {
		_ = s.Run()
		close(done)
	}()

	// Wait until the listening socket accepts a connection.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), 100*time.Millisecond)
		if err == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	teardown := func() {
		s.Shutdown()
		<-done
		s.Stop()
	}
	return port, teardown
}

func sendRaw(t *testing.T, port int, raw string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	var out strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := reader.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return out.String()
}

func TestEndToEndGetIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("hello world"), 0o644))

	port, teardown := startTestServer(t, dir)
	defer teardown()

	resp := sendRaw(t, port, "GET / HTTP/1.1\r\nHost: 127.0.0.1:"+strconv.Itoa(port)+"\r\n\r\n")
	require.Contains(t, resp, "HTTP/1.1 200 OK")
	require.Contains(t, resp, "Content-Length: 11")
	require.Contains(t, resp, "hello world")
}

func TestEndToEndMissing(t *testing.T) {
	dir := t.TempDir()
	port, teardown := startTestServer(t, dir)
	defer teardown()

	resp := sendRaw(t, port, "GET /missing HTTP/1.1\r\nHost: 127.0.0.1:"+strconv.Itoa(port)+"\r\n\r\n")
	require.Contains(t, resp, "HTTP/1.1 404 Not Found")
	require.Contains(t, resp, "Content-Type: text/plain")
}

func TestEndToEndHTTP10ClosesConnection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("hi"), 0o644))
	port, teardown := startTestServer(t, dir)
	defer teardown()

	resp := sendRaw(t, port, "GET / HTTP/1.0\r\n\r\n")
	require.Contains(t, resp, "Connection: close")
	require.Contains(t, resp, "hi")
}

func TestEndToEndOptions(t *testing.T) {
	dir := t.TempDir()
	port, teardown := startTestServer(t, dir)
	defer teardown()

	resp := sendRaw(t, port, "OPTIONS * HTTP/1.1\r\nHost: 127.0.0.1:"+strconv.Itoa(port)+"\r\n\r\n")
	require.Contains(t, resp, "HTTP/1.1 200 OK")
	require.Contains(t, resp, "Allow: HEAD, GET, OPTIONS, TRACE")
	require.Contains(t, resp, "Connection: close")
}

func TestEndToEndTrace(t *testing.T) {
	dir := t.TempDir()
	port, teardown := startTestServer(t, dir)
	defer teardown()

	req := "TRACE / HTTP/1.1\r\nHost: 127.0.0.1:" + strconv.Itoa(port) + "\r\n\r\n"
	resp := sendRaw(t, port, req)
	require.Contains(t, resp, "HTTP/1.1 200 OK")
	require.Contains(t, resp, "Content-Type: message/http")
	require.Contains(t, resp, req)
}

func TestEndToEndTraversalRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "etc"), 0o755))
	port, teardown := startTestServer(t, dir)
	defer teardown()

	resp := sendRaw(t, port, "GET /../etc/passwd HTTP/1.1\r\nHost: 127.0.0.1:"+strconv.Itoa(port)+"\r\n\r\n")
	require.Contains(t, resp, "HTTP/1.1 404 Not Found")
}
