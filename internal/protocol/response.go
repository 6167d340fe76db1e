package protocol

import (
	"bytes"
	"fmt"
	"strings"
)

// Response is an inbound frame.  Raw keeps the frame exactly as it was
// received; consumers are handed responses verbatim.
type Response struct {
	Tag    Tag
	Fields []string
	Raw    string
}

// ParseResponse splits a raw frame into tag and fields.  It never fails:
// whether the tag is meaningful depends on the role of the connection.
func ParseResponse(raw string) Response {
	parts := strings.Split(raw, Separator)
	return Response{Tag: Tag(parts[0]), Fields: parts[1:], Raw: raw}
}

// String returns the raw frame.
func (r Response) String() string { return r.Raw }

// Text returns everything after the tag, e.g. the message of an ERROR
// frame or the song name of a SONGS frame.
func (r Response) Text() string {
	if i := strings.Index(r.Raw, Separator); i >= 0 {
		return r.Raw[i+1:]
	}
	return ""
}

// Endpoint decodes an IP frame: IP:<addr>:<opaque>:<port>.  The third
// token has no defined meaning and is ignored, but the four-token shape
// is required.
func (r Response) Endpoint() (Endpoint, error) {
	if r.Tag != TagIP {
		return Endpoint{}, fmt.Errorf("not an IP frame: %q", r.Raw)
	}
	if len(r.Fields) != 3 {
		return Endpoint{}, fmt.Errorf("IP frame needs 4 tokens, got %d", len(r.Fields)+1)
	}
	return NewEndpoint(strings.TrimSpace(r.Fields[0]), strings.TrimSpace(r.Fields[2]))
}

// IsNoServer reports whether the response is the directory's transient
// "no server of the requested type" error.
func (r Response) IsNoServer() bool {
	return r.Tag == TagError && strings.HasPrefix(r.Text(), "No server of")
}

// SongHeader reports whether frame opens a song transfer.  The server
// writes the bare tag SONG followed by raw audio, so a single read may
// already carry the start of the payload; it is returned as rest.
// SONGS:<name> list entries are not song headers.
func SongHeader(frame []byte) (rest []byte, ok bool) {
	if !bytes.HasPrefix(frame, []byte(TagSong)) {
		return nil, false
	}
	rest = frame[len(TagSong):]
	if bytes.HasPrefix(rest, []byte(Separator)) || bytes.HasPrefix(rest, []byte("S"+Separator)) {
		return nil, false
	}
	return rest, true
}

// DecodeFrame turns one control read into text, dropping the NUL
// padding and line endings some servers append.
func DecodeFrame(b []byte) string {
	return strings.TrimRight(string(b), "\x00\r\n")
}
