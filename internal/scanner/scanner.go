package scanner

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/mcspy/internal/cluster"
	"github.com/dreamware/mcspy/internal/protocol"
	"github.com/dreamware/mcspy/internal/slab"
	"github.com/dreamware/mcspy/internal/storage"
)

// Sender sends one command to one server. *protocol.Client implements it.
type Sender interface {
	Send(ctx context.Context, addr, command string) (protocol.Response, error)
}

// Scan outcome of a single server.
const (
	StatusOK          = "ok"          // every slab answered
	StatusPartial     = "partial"     // some slabs failed
	StatusUnreachable = "unreachable" // connect failed, nothing collected
	StatusCancelled   = "cancelled"   // context ended before the last slab
)

// ServerScan summarizes the scan of one server.
type ServerScan struct {
	Server       string        // host:port
	Status       string        // one of the Status constants
	SlabsScanned int           // slabs that answered
	SlabsFailed  int           // slabs skipped after an error
	Items        int           // records kept after the key filter
	LastError    error         // most recent failure, nil if none
	Duration     time.Duration // wall time spent on this server
}

// Scanner walks slab ranges across servers.
// A Scanner holds no per-scan state and may be reused.
type Scanner struct {
	sender  Sender
	slabs   slab.Range
	match   func(key string) bool
	workers int
	logger  *log.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithSlabs sets the slab ids to scan. The default is the full range.
func WithSlabs(r slab.Range) Option {
	return func(s *Scanner) { s.slabs = r }
}

// WithKeyFilter drops keys for which match returns false at collection time.
func WithKeyFilter(match func(key string) bool) Option {
	return func(s *Scanner) { s.match = match }
}

// WithWorkers bounds how many servers are scanned at once.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the destination for informational notes.
func WithLogger(l *log.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Scanner sending commands through sender.
func New(sender Sender, opts ...Option) *Scanner {
	s := &Scanner{
		sender:  sender,
		slabs:   slab.Select(0),
		workers: 1,
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan collects the keys of every configured slab on every server. It never
// fails as a whole: per-server problems are reported in the summaries, which
// follow the order of servers. Records are sorted by (server, slab, key).
func (s *Scanner) Scan(ctx context.Context, servers []cluster.ServerInfo) ([]storage.RawRecord, []ServerScan) {
	results := make([][]storage.RawRecord, len(servers))
	summaries := make([]ServerScan, len(servers))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, srv := range servers {
		i, srv := i, srv
		g.Go(func() error {
			results[i], summaries[i] = s.scanServer(ctx, srv.Addr())
			return nil
		})
	}
	_ = g.Wait()

	var total int
	for _, r := range results {
		total += len(r)
	}
	records := make([]storage.RawRecord, 0, total)
	for _, r := range results {
		records = append(records, r...)
	}
	slices.SortStableFunc(records, compareRecords)

	return records, summaries
}

// scanServer walks the slab range of one server in order. A failed connect
// ends the walk; any other failure only skips the slab.
func (s *Scanner) scanServer(ctx context.Context, addr string) ([]storage.RawRecord, ServerScan) {
	start := time.Now()
	summary := ServerScan{Server: addr, Status: StatusOK}
	var records []storage.RawRecord

	for _, id := range s.slabs {
		if err := ctx.Err(); err != nil {
			summary.Status = StatusCancelled
			summary.LastError = err
			break
		}

		resp, err := s.sender.Send(ctx, addr, slab.CachedumpCommand(id))
		if err != nil {
			summary.LastError = err
			if ctx.Err() != nil {
				// A dial cut short by cancellation looks like an unreachable server
				summary.Status = StatusCancelled
				break
			}
			if errors.Is(err, protocol.ErrUnreachable) {
				s.logger.Printf("Server %s is unreachable, skipping: %v", addr, err)
				summary.Status = StatusUnreachable
				break
			}
			summary.SlabsFailed++
			s.logger.Printf("Slab %d on %s skipped: %v", id, addr, err)
			continue
		}
		summary.SlabsScanned++

		for _, it := range resp.Items() {
			if s.match != nil && !s.match(it.Key) {
				continue
			}
			records = append(records, storage.RawRecord{
				Server:     addr,
				Slab:       id,
				Key:        it.Key,
				SizeBytes:  it.SizeBytes,
				AgeSeconds: it.AgeSeconds,
			})
		}
	}

	if summary.Status == StatusOK && summary.SlabsFailed > 0 {
		summary.Status = StatusPartial
	}
	summary.Items = len(records)
	summary.Duration = time.Since(start)
	return records, summary
}

func compareRecords(a, b storage.RawRecord) int {
	switch {
	case a.Server != b.Server:
		return strings.Compare(a.Server, b.Server)
	case a.Slab != b.Slab:
		return a.Slab - b.Slab
	default:
		return strings.Compare(a.Key, b.Key)
	}
}
