// Package protocol is a minimal client for the memcache text protocol, limited
// to the diagnostic commands mcspy needs (stats, stats slabs, stats settings,
// stats cachedump).
//
// Every call opens one TCP connection, writes one CRLF-terminated command,
// reads lines until a terminator and closes the connection. There is no
// pooling, pipelining or retry.
//
// Response lines are classified into a closed set of shapes:
//
//	ITEM <key> [<bytes> b; <age> s]   LineItem
//	STAT <name> <value>               LineStat
//	END | DELETED | NOT_FOUND | OK    LineTerminator
//	ERROR | CLIENT_ERROR | SERVER_ERROR ...
//	                                  LineError
//	anything else                     LineUnknown
//
// Unknown lines are kept in the raw response text but never parsed.
package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrConnection marks a server that could not be reached or stopped
	// answering before the deadline. Callers treat it as "no data".
	ErrConnection = errors.New("connection failed")
	// ErrServer marks an ERROR, CLIENT_ERROR or SERVER_ERROR reply.
	ErrServer = errors.New("server error")
)

// ErrUnreachable marks a failed connect. It wraps ErrConnection; a scanner
// can use it to stop querying a server that is down.
var ErrUnreachable = fmt.Errorf("%w: unreachable", ErrConnection)

// LineKind is the shape of one response line.
type LineKind int

const (
	LineUnknown LineKind = iota
	LineItem
	LineStat
	LineTerminator
	LineError
)

func (k LineKind) String() string {
	switch k {
	case LineItem:
		return "item"
	case LineStat:
		return "stat"
	case LineTerminator:
		return "terminator"
	case LineError:
		return "error"
	default:
		return "unknown"
	}
}

var terminators = map[string]bool{
	"END":       true,
	"DELETED":   true,
	"NOT_FOUND": true,
	"OK":        true,
}

// ClassifyLine returns the shape of a response line. Trailing CR/LF is ignored.
func ClassifyLine(line string) LineKind {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)

	switch {
	case terminators[trimmed]:
		return LineTerminator
	case trimmed == "ERROR",
		strings.HasPrefix(trimmed, "CLIENT_ERROR"),
		strings.HasPrefix(trimmed, "SERVER_ERROR"):
		return LineError
	case strings.HasPrefix(line, "ITEM ") && len(strings.Fields(line)) >= 2:
		return LineItem
	case strings.HasPrefix(line, "STAT ") && len(strings.Fields(line)) >= 3:
		return LineStat
	default:
		return LineUnknown
	}
}

// Item is one entry of a cachedump reply.
type Item struct {
	Key        string
	SizeBytes  int64
	AgeSeconds int64
	Meta       string // bracketed metadata exactly as sent, e.g. "[12 b; 0 s]"
}

var itemMeta = regexp.MustCompile(`^\[(\d+) b; (\d+) s\]$`)

// ParseItemLine parses "ITEM <key> [<bytes> b; <age> s]". Metadata is
// optional; when absent or malformed the sizes stay zero.
func ParseItemLine(line string) (Item, bool) {
	if ClassifyLine(line) != LineItem {
		return Item{}, false
	}
	line = strings.TrimRight(line, "\r\n")

	fields := strings.Fields(line)
	it := Item{Key: fields[1]}
	if len(fields) > 2 {
		it.Meta = strings.Join(fields[2:], " ")
		if m := itemMeta.FindStringSubmatch(it.Meta); m != nil {
			it.SizeBytes, _ = strconv.ParseInt(m[1], 10, 64)
			it.AgeSeconds, _ = strconv.ParseInt(m[2], 10, 64)
		}
	}
	return it, true
}

// Stat is one "STAT <name> <value>" line.
type Stat struct {
	Name  string
	Value string
}

// ParseStatLine parses "STAT <name> <value>". Values containing spaces are
// kept whole.
func ParseStatLine(line string) (Stat, bool) {
	if ClassifyLine(line) != LineStat {
		return Stat{}, false
	}
	fields := strings.Fields(strings.TrimRight(line, "\r\n"))
	return Stat{Name: fields[1], Value: strings.Join(fields[2:], " ")}, true
}

// Response holds the lines read before the terminator.
type Response struct {
	Lines      []string // without CR/LF
	Terminator string   // terminator or error line; empty if the peer closed first
}

// Text returns the lines joined as received, each followed by a newline.
func (r Response) Text() string {
	if len(r.Lines) == 0 {
		return ""
	}
	return strings.Join(r.Lines, "\n") + "\n"
}

// Items returns every well-formed ITEM line; other lines are skipped.
func (r Response) Items() []Item {
	var items []Item
	for _, l := range r.Lines {
		if it, ok := ParseItemLine(l); ok {
			items = append(items, it)
		}
	}
	return items
}

// Stats returns every well-formed STAT line; other lines are skipped.
func (r Response) Stats() []Stat {
	var stats []Stat
	for _, l := range r.Lines {
		if st, ok := ParseStatLine(l); ok {
			stats = append(stats, st)
		}
	}
	return stats
}

// Client sends single diagnostic commands.
// A zero Client is not usable; create one with NewClient.
type Client struct {
	timeout time.Duration
	dialer  *net.Dialer
}

// NewClient returns a client whose connect and per-command deadline is timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		timeout: timeout,
		dialer:  &net.Dialer{Timeout: timeout},
	}
}

// Send opens a connection to addr, writes command and reads the reply.
//
// A failed connect is returned wrapped in ErrUnreachable; failures to write
// or read before the deadline are returned wrapped in ErrConnection. An error
// reply from the server is returned wrapped in ErrServer together with the
// lines read so far. A peer that closes the connection without a terminator
// is not an error.
func (c *Client) Send(ctx context.Context, addr, command string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s: %v", ErrUnreachable, addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Unblock reads if the caller's context is cancelled early.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, command+"\r\n"); err != nil {
		return Response{}, fmt.Errorf("%w: %s: write: %v", ErrConnection, addr, err)
	}

	return readResponse(bufio.NewReader(conn), addr)
}

func readResponse(r *bufio.Reader, addr string) (Response, error) {
	var resp Response
	for {
		raw, err := r.ReadString('\n')
		if raw != "" {
			line := strings.TrimRight(raw, "\r\n")
			switch ClassifyLine(line) {
			case LineTerminator:
				resp.Terminator = strings.TrimSpace(line)
				return resp, nil
			case LineError:
				resp.Terminator = strings.TrimSpace(line)
				return resp, fmt.Errorf("%w: %s: %s", ErrServer, addr, resp.Terminator)
			default:
				resp.Lines = append(resp.Lines, line)
			}
		}
		if err == io.EOF {
			return resp, nil
		}
		if err != nil {
			return resp, fmt.Errorf("%w: %s: read: %v", ErrConnection, addr, err)
		}
	}
}
