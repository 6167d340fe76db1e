package console

import (
	"strings"

	"tierstream/internal/protocol"
)

const helpText = `commands:
  login <user> <pass>     log in
  create <user> <pass>    create an account
  list                    list songs
  play <song>             stream the first song matching <song>
  recommend               ask for a recommendation
  server <role>           ask the directory for a LOGIN or STREAMING server
  disconnect              drop the current server and reconnect
  raw <frame>             send a protocol frame as typed
  state                   show the session state
  quit                    disconnect and exit
`

// execute runs one input line and reports whether the user quit.
func (c *Console) execute(line string) (quit bool) {
	name, args := fields(line)
	if name == "" {
		return false
	}

	var (
		cmd protocol.Command
		err error
	)
	switch name {
	case "quit", "exit":
		c.printf("bye\n")
		return true
	case "help", "?":
		c.printf("%s", helpText)
		return false
	case "state":
		c.printf("%s\n", c.Session.State())
		return false
	case "login", "create":
		if len(args) != 2 {
			c.printf("usage: %s <user> <pass>\n", name)
			return false
		}
		if name == "login" {
			cmd, err = protocol.Login(args[0], args[1])
		} else {
			cmd, err = protocol.Create(args[0], args[1])
		}
	case "list":
		cmd = protocol.SongList()
	case "play":
		if len(args) == 0 {
			c.printf("usage: play <song>\n")
			return false
		}
		cmd, err = protocol.Song(strings.Join(args, " "))
	case "recommend":
		cmd = protocol.Recommendation()
	case "server":
		role := protocol.RoleNone
		if len(args) == 1 {
			role = protocol.ParseRole(args[0])
		}
		if role != protocol.RoleLogin && role != protocol.RoleStreaming {
			c.printf("usage: server LOGIN|STREAMING\n")
			return false
		}
		if c.Breaker != nil {
			c.Breaker.Reset()
		}
		cmd = protocol.GetServer(role)
	case "disconnect":
		cmd = protocol.Disconnect()
	case "raw":
		err = c.Session.SubmitCommand(strings.Join(args, " "))
		if err != nil {
			c.printf("error: %v\n", err)
		}
		return false
	default:
		c.printf("unknown command %q (try help)\n", name)
		return false
	}

	if err != nil {
		c.printf("error: %v\n", err)
		return false
	}
	c.Session.Submit(cmd)
	return false
}
