// Package protocol models the colon-delimited text protocol spoken
// between the client and the directory, login and streaming servers.
//
// Frames are newline-free UTF-8 strings, one per socket write.  The
// first colon-separated token is the tag; the rest are positional
// fields.  Every frame is parsed exactly once into a [Command] or a
// [Response] at the edge of the session engine so the rest of the code
// switches on a closed [Tag] set instead of re-splitting raw strings.
package protocol

import (
	"fmt"
	"strings"
)

// Separator splits tokens inside a frame.
const Separator = ":"

// SongTerminator marks the end of a song's raw byte stream.
const SongTerminator = "EOF:EOF:EOF"

// Tag identifies the kind of a frame.
type Tag string

// Outbound (client → server) tags.
const (
	TagClient         Tag = "CLIENT"
	TagGetServer      Tag = "GETSERVER"
	TagDisconnect     Tag = "DISCONNECT"
	TagLogin          Tag = "LOGIN"
	TagCreate         Tag = "CREATE"
	TagSong           Tag = "SONG"
	TagSongList       Tag = "SONGLIST"
	TagRecommendation Tag = "RECOMMENDATION"
	TagHeartbeat      Tag = "HEARTBEAT"
)

// Inbound (server → client) tags not shared with the outbound set.
const (
	TagError       Tag = "ERROR"
	TagIP          Tag = "IP"
	TagAdded       Tag = "ADDED"
	TagAuth        Tag = "AUTH"
	TagRemoved     Tag = "REMOVED"
	TagSongs       Tag = "SONGS"
	TagTypeStored  Tag = "TYPESTORED"
	TagUnsupported Tag = "MESSAGEUNSUPPORTED"
)

var outboundTags = map[Tag]bool{
	TagClient: true, TagGetServer: true, TagDisconnect: true,
	TagLogin: true, TagCreate: true, TagSong: true, TagSongList: true,
	TagRecommendation: true, TagHeartbeat: true,
}

// ── Command ──────────────────────────────────────────────────────────

// Command is an outbound frame.
type Command struct {
	Tag  Tag
	Args []string
}

// String renders the command in wire form.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return string(c.Tag)
	}
	return string(c.Tag) + Separator + strings.Join(c.Args, Separator)
}

// Encode returns the wire bytes of the command.
func (c Command) Encode() []byte { return []byte(c.String()) }

// Role returns the role named by a GETSERVER command, or RoleNone.
func (c Command) Role() Role {
	if c.Tag != TagGetServer || len(c.Args) == 0 {
		return RoleNone
	}
	return ParseRole(c.Args[0])
}

// ParseCommand parses a raw outbound string.  The tag must belong to the
// outbound grammar; argument counts are checked for commands that carry
// them.
func ParseCommand(raw string) (Command, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Command{}, fmt.Errorf("empty command")
	}
	parts := strings.Split(raw, Separator)
	cmd := Command{Tag: Tag(strings.ToUpper(parts[0])), Args: parts[1:]}
	if !outboundTags[cmd.Tag] {
		return Command{}, fmt.Errorf("unknown command %q", parts[0])
	}
	if len(cmd.Args) == 0 {
		cmd.Args = nil
	}

	want := 0
	switch cmd.Tag {
	case TagGetServer, TagSong:
		want = 1
	case TagLogin, TagCreate:
		want = 2
	}
	if len(cmd.Args) != want {
		return Command{}, fmt.Errorf("%s takes %d argument(s), got %d", cmd.Tag, want, len(cmd.Args))
	}
	if err := ValidateFields(cmd.Args...); err != nil {
		return Command{}, fmt.Errorf("%s: %w", cmd.Tag, err)
	}
	if cmd.Tag == TagGetServer && cmd.Role() == RoleNone {
		return Command{}, fmt.Errorf("GETSERVER: unknown role %q", cmd.Args[0])
	}
	return cmd, nil
}

// ── Command constructors ─────────────────────────────────────────────

// Client is the greeting identifying this peer as a consumer.
func Client() Command { return Command{Tag: TagClient} }

// Disconnect requests a graceful close.
func Disconnect() Command { return Command{Tag: TagDisconnect} }

// SongList requests the catalogue.
func SongList() Command { return Command{Tag: TagSongList} }

// Recommendation asks the streaming server for a suggestion.
func Recommendation() Command { return Command{Tag: TagRecommendation} }

// Heartbeat is the directory keepalive probe.
func Heartbeat() Command { return Command{Tag: TagHeartbeat} }

// GetServer asks the directory for a server of the given role.
func GetServer(r Role) Command {
	return Command{Tag: TagGetServer, Args: []string{r.String()}}
}

// Login authenticates against a login server.
func Login(user, pass string) (Command, error) {
	if err := ValidateFields(user, pass); err != nil {
		return Command{}, err
	}
	return Command{Tag: TagLogin, Args: []string{user, pass}}, nil
}

// Create registers a new account.
func Create(user, pass string) (Command, error) {
	if err := ValidateFields(user, pass); err != nil {
		return Command{}, err
	}
	return Command{Tag: TagCreate, Args: []string{user, pass}}, nil
}

// Song requests playback of the first song matching query.
func Song(query string) (Command, error) {
	if err := ValidateFields(query); err != nil {
		return Command{}, err
	}
	return Command{Tag: TagSong, Args: []string{query}}, nil
}

// ValidateFields rejects empty fields and fields containing the
// separator, which would shift every following token on the wire.
func ValidateFields(fields ...string) error {
	for _, f := range fields {
		if f == "" {
			return fmt.Errorf("field must not be empty")
		}
		if strings.Contains(f, Separator) {
			return fmt.Errorf("field %q must not contain %q", f, Separator)
		}
	}
	return nil
}
