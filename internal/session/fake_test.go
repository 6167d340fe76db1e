package session

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	tserr "tierstream/internal/errors"
	"tierstream/internal/protocol"
	"tierstream/internal/transport"
)

// step is one exchange in a fake server's script.  The server waits
// until expect appears in what it has received (after the previous
// match), writes reply, and optionally closes the connection.  An
// empty expect matches at once.
type step struct {
	expect string
	reply  string
	close  bool
}

// fakeServer is a scripted loopback backend.  Connection i follows
// scripts[i]; connections beyond the last script reuse it.
type fakeServer struct {
	t       *testing.T
	ln      net.Listener
	ep      protocol.Endpoint
	scripts [][]step

	mu      sync.Mutex
	streams []*strings.Builder
	conns   []net.Conn
	wg      sync.WaitGroup
}

func startServer(t *testing.T, scripts ...[]step) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ep, err := protocol.ParseEndpoint(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeServer{t: t, ln: ln, ep: ep, scripts: scripts}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(s.stop)
	return s
}

func (s *fakeServer) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		idx := len(s.streams)
		rec := &strings.Builder{}
		s.streams = append(s.streams, rec)
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		var script []step
		if len(s.scripts) > 0 {
			script = s.scripts[min(idx, len(s.scripts)-1)]
		}
		s.wg.Add(1)
		go s.serve(conn, rec, script)
	}
}

func (s *fakeServer) serve(conn net.Conn, rec *strings.Builder, script []step) {
	defer s.wg.Done()
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck

	var seen string
	buf := make([]byte, 4096)
	for {
		for len(script) > 0 {
			st := script[0]
			i := strings.Index(seen, st.expect)
			if i < 0 {
				break
			}
			seen = seen[i+len(st.expect):]
			script = script[1:]
			if st.reply != "" {
				if _, err := conn.Write([]byte(st.reply)); err != nil {
					return
				}
				// keep replies in separate reads on the client
				time.Sleep(20 * time.Millisecond)
			}
			if st.close {
				return
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			s.mu.Lock()
			rec.Write(buf[:n])
			s.mu.Unlock()
			seen += string(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (s *fakeServer) stop() {
	s.ln.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// accepted returns the number of connections seen so far.
func (s *fakeServer) accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// stream returns everything received on connection i.
func (s *fakeServer) stream(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.streams) {
		return ""
	}
	return s.streams[i].String()
}

// ipFrame is the directory's answer pointing at s.
func (s *fakeServer) ipFrame() string {
	return fmt.Sprintf("IP:%s:x:%d", s.ep.Host(), s.ep.Port())
}

// directoryScript answers one GETSERVER for ask with target's address
// and closes once the client disconnects.
func directoryScript(ask protocol.Role, target *fakeServer) []step {
	return []step{
		{expect: "CLIENT"},
		{expect: protocol.GetServer(ask).String(), reply: target.ipFrame()},
		{expect: "DISCONNECT", close: true},
	}
}

// ── Dialers ──────────────────────────────────────────────────────────

var errWriteRefused = tserr.New("write refused")

// brokenWrites dials over TCP, but connections to target refuse every
// write.
type brokenWrites struct {
	transport.TCPDialer
	target protocol.Endpoint
}

func (d *brokenWrites) Dial(ctx context.Context, ep protocol.Endpoint) (net.Conn, error) {
	conn, err := d.TCPDialer.Dial(ctx, ep)
	if err != nil || ep != d.target {
		return conn, err
	}
	return writeRefused{conn}, nil
}

type writeRefused struct{ net.Conn }

func (writeRefused) Write([]byte) (int, error) { return 0, errWriteRefused }

// dialFunc adapts a function to transport.Dialer.
type dialFunc func(ctx context.Context, ep protocol.Endpoint) (net.Conn, error)

func (f dialFunc) Dial(ctx context.Context, ep protocol.Endpoint) (net.Conn, error) { return f(ctx, ep) }
func (dialFunc) Close() error { return nil }

// recordedHop returns the next hop without taking it.
func recordedHop(m *Manager) protocol.Endpoint {
	m.hop.mu.Lock()
	defer m.hop.mu.Unlock()
	return m.hop.next
}

// ── Wait helpers ─────────────────────────────────────────────────────

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// waitResponse pops inbound responses until one with tag arrives.
func waitResponse(t *testing.T, m *Manager, tag protocol.Tag) protocol.Response {
	t.Helper()
	var got protocol.Response
	eventually(t, "response "+string(tag), func() bool {
		for {
			r, err := m.NextResponse()
			if err != nil {
				return false
			}
			if r.Tag == tag {
				got = r
				return true
			}
		}
	})
	return got
}

type running struct {
	done chan struct{}
	err  error
}

// start runs m in the background.  Cleanup requests quit and waits
// for Run to return.
func start(t *testing.T, m *Manager) *running {
	t.Helper()
	r := &running{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.err = m.Run(context.Background())
	}()
	t.Cleanup(func() {
		m.RequestQuit()
		select {
		case <-r.done:
		case <-time.After(10 * time.Second):
			t.Error("Run did not return after quit")
		}
	})
	return r
}

func (r *running) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-r.done:
		return r.err
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}
