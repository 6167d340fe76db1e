// Package console is the interactive consumer of a streaming session.
// It turns typed lines into protocol commands, prints what the servers
// answer, and tracks login state for the session engine.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"tierstream/config"
	tserr "tierstream/internal/errors"
	"tierstream/internal/protocol"
	"tierstream/internal/retry"
	"tierstream/internal/session"
	"tierstream/util"
)

var errNoServer = tserr.New("no server of the requested type")

// Session is the part of [session.Manager] the console drives.
type Session interface {
	Submit(cmd protocol.Command)
	SubmitCommand(raw string) error
	NextResponse() (protocol.Response, error)
	Subscribe(fn func()) (cancel func())
	State() session.State
	SetState(s session.State)
	RequestQuit()
}

// Console reads commands from In and writes server output to Out.
type Console struct {
	Session Session
	In      io.Reader
	Out     io.Writer
	Logger  *util.Logger

	// RetryDelay is the wait before asking the directory again after
	// it had no server of the wanted type.
	RetryDelay time.Duration
	// Breaker bounds those retries; nil retries forever.
	Breaker *retry.CircuitBreaker

	outMu   sync.Mutex
	authKey string
}

// AuthKey returns the key from the last AUTH reply.
func (c *Console) AuthKey() string {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.authKey
}

// Run asks for a login server and processes input and responses until
// the user quits, In reaches EOF or ctx is cancelled.  The session is
// asked to quit whenever Run returns.
func (c *Console) Run(ctx context.Context) error {
	if c.Logger == nil {
		c.Logger = util.NopLogger()
	}
	log := c.Logger.Named("console")
	delay := c.RetryDelay
	if delay <= 0 {
		delay = config.DefaultDiscoveryRetryDelay
	}
	defer c.Session.RequestQuit()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	notify := make(chan struct{}, 1)
	cancel := c.Session.Subscribe(func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer cancel()

	lines := make(chan string)
	go c.scan(ctx, lines)

	c.Session.Submit(protocol.GetServer(protocol.RoleLogin))
	c.printf("connecting... type 'help' for commands\n")

	retryTimer := time.NewTimer(delay)
	retryTimer.Stop()
	defer retryTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				log.Verbose("input closed")
				return nil
			}
			if quit := c.execute(line); quit {
				return nil
			}

		case <-notify:
			if c.drain() {
				retryTimer.Reset(delay)
			}

		case <-retryTimer.C:
			role := wantedRole(c.Session.State())
			if c.Breaker != nil {
				if err := c.Breaker.Allow(); err != nil {
					log.Warn("no %s server available, holding off: %v", role, err)
					retryTimer.Reset(delay)
					continue
				}
			}
			log.Verbose("asking the directory for a %s server again", role)
			c.Session.Submit(protocol.GetServer(role))
		}
	}
}

// scan feeds input lines to out until EOF or ctx ends.
func (c *Console) scan(ctx context.Context, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(c.In)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}

// drain prints every waiting response and reports whether the
// directory answered "No server of ...".
func (c *Console) drain() (noServer bool) {
	for {
		resp, err := c.Session.NextResponse()
		if err != nil {
			return noServer
		}
		if c.handle(resp) {
			noServer = true
		}
	}
}

// handle reacts to one response.  It reports a "No server of" error.
func (c *Console) handle(resp protocol.Response) bool {
	if resp.IsNoServer() {
		if c.Breaker != nil {
			c.Breaker.Record(errNoServer)
		}
		c.printf("waiting for a server: %s\n", resp.Text())
		return true
	}
	if c.Breaker != nil && resp.Tag != protocol.TagError {
		c.Breaker.Record(nil)
	}

	switch resp.Tag {
	case protocol.TagAuth:
		c.outMu.Lock()
		c.authKey = resp.Text()
		c.outMu.Unlock()
		c.Session.SetState(session.StateLoggedIn)
		c.printf("logged in\n")
	case protocol.TagAdded:
		c.printf("account created: %s\n", resp.Text())
	case protocol.TagError:
		c.printf("error: %s\n", resp.Text())
	case protocol.TagSongs:
		c.streaming()
		c.printf("  %s\n", resp.Text())
	case protocol.TagRemoved:
		c.streaming()
		c.printf("removed %s\n", resp.Text())
	case protocol.TagRecommendation:
		c.streaming()
		c.printf("recommended: %s\n", resp.Text())
	default:
		c.printf("%s\n", resp.Raw)
	}
	return false
}

// streaming records that a streaming server is answering.
func (c *Console) streaming() {
	if c.Session.State() == session.StateLoggedIn {
		c.Session.SetState(session.StateStreaming)
	}
}

func (c *Console) printf(format string, args ...interface{}) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.Out, format, args...)
}

// wantedRole is the server type the session is waiting for.
func wantedRole(s session.State) protocol.Role {
	switch s {
	case session.StateLoggedIn, session.StateStreaming:
		return protocol.RoleStreaming
	default:
		return protocol.RoleLogin
	}
}

func fields(line string) (string, []string) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return "", nil
	}
	return strings.ToLower(f[0]), f[1:]
}
