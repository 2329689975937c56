package inspect

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/dreamware/mcspy/internal/cluster"
	"github.com/dreamware/mcspy/internal/scanner"
	"github.com/dreamware/mcspy/internal/slab"
)

// MinSearchLength is the shortest text DeepSearch accepts.
const MinSearchLength = 4

var (
	// ErrSearchTooShort is returned for search text under MinSearchLength bytes.
	ErrSearchTooShort = fmt.Errorf("search text must be at least %d characters", MinSearchLength)
	// ErrNotConfirmed is returned when input ends before the operator confirms.
	ErrNotConfirmed = errors.New("operation not confirmed")
)

// ExportContents fetches the value of every snapshot key matching the key
// filter and stores it through the store's content export. Keys are looked up
// across all servers the way an application client would. Missing keys are
// skipped; a storage failure stops the export. It returns the number of
// values written.
func (i *Inspector) ExportContents(ctx context.Context) (int, error) {
	snap, err := i.Refresh(ctx)
	if err != nil {
		return 0, err
	}

	mc := memcache.New(cluster.AddrList(i.cfg.Servers)...)
	mc.Timeout = i.cfg.Timeout

	i.logger.Printf("Dumping content to files...")
	seen := make(map[string]bool)
	var written int
	for _, r := range snap.Raw {
		if seen[r.Key] || !i.cfg.KeyMatches(r.Key) {
			continue
		}
		seen[r.Key] = true

		if err := ctx.Err(); err != nil {
			return written, err
		}

		item, err := mc.Get(r.Key)
		if err != nil {
			if !errors.Is(err, memcache.ErrCacheMiss) {
				i.logger.Printf("Get %s: %v", r.Key, err)
			}
			continue
		}
		if err := i.store.WriteContent(r.Key, item.Value); err != nil {
			return written, fmt.Errorf("export %s: %w", r.Key, err)
		}
		written++
	}

	i.logger.Printf("%d items written, %d in the content dump", written, i.store.Stats().Contents)
	return written, nil
}

// Match is one key whose value contains the search text.
type Match struct {
	Server string
	Slab   int
	Key    string
	Meta   string // "[<bytes> b; <age> s]"
}

// String renders the match the way it is printed.
func (m Match) String() string {
	return fmt.Sprintf("MATCH: SERVER=%s SLAB=%d ITEM %s %s", m.Server, m.Slab, m.Key, m.Meta)
}

// DeepSearch reads the value of every key on every server and reports the
// keys whose value contains text, ignoring case. Unless the configuration
// assumes yes, the operator must confirm first by pressing Enter. Servers
// are visited one at a time since every key costs a round trip.
func (i *Inspector) DeepSearch(ctx context.Context, text string) ([]Match, error) {
	if len(text) < MinSearchLength {
		return nil, ErrSearchTooShort
	}
	if !i.cfg.AssumeYes {
		if err := i.confirm("NOTE: This operation traverses ALL memcache items. Continue? (Enter/Ctrl-C)"); err != nil {
			return nil, err
		}
	}

	needle := bytes.ToLower([]byte(text))
	var matches []Match

	for _, srv := range i.cfg.Servers {
		records, _ := scanner.New(i.sender,
			scanner.WithSlabs(slab.Select(i.cfg.Slab)),
			scanner.WithKeyFilter(i.cfg.KeyMatches),
			scanner.WithLogger(i.logger),
		).Scan(ctx, []cluster.ServerInfo{srv})
		if len(records) == 0 {
			continue
		}

		mc := memcache.New(srv.Addr())
		mc.Timeout = i.cfg.Timeout

		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return matches, err
			}
			item, err := mc.Get(r.Key)
			if err != nil {
				continue
			}
			if !bytes.Contains(bytes.ToLower(item.Value), needle) {
				continue
			}

			m := Match{Server: srv.String(), Slab: r.Slab, Key: r.Key, Meta: r.Meta()}
			matches = append(matches, m)
			if _, err := fmt.Fprintln(i.out, m); err != nil {
				return matches, err
			}
		}
	}
	return matches, nil
}

// confirm logs prompt and waits for a line of input.
func (i *Inspector) confirm(prompt string) error {
	i.logger.Print(prompt)
	if _, err := bufio.NewReader(i.in).ReadString('\n'); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrNotConfirmed
		}
		return fmt.Errorf("read confirmation: %w", err)
	}
	return nil
}
