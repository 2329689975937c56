// Package memcachetest runs an in-process memcache server that understands the
// handful of text-protocol commands mcspy issues, for use in tests.
package memcachetest

import (
	"bufio"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Item is one stored entry.
type Item struct {
	Key   string
	Value []byte
	Age   int64
}

// Server is a fake memcache server bound to 127.0.0.1 on a random port.
type Server struct {
	ln       net.Listener
	mu       sync.Mutex
	slabs    map[int][]Item
	hang     map[int]bool
	slabStat []string
	settings []string
	general  []string
	commands []string
	wg       sync.WaitGroup
}

// NewServer starts a server and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start listener: %v", err)
	}

	s := &Server{
		ln:    ln,
		slabs: make(map[int][]Item),
		hang:  make(map[int]bool),
	}

	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)

	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops accepting connections.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.wg.Wait()
}

// Add stores items in slab.
func (s *Server) Add(slab int, items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slabs[slab] = append(s.slabs[slab], items...)
}

// Hang makes cachedump requests for slab never answer.
func (s *Server) Hang(slab int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hang[slab] = true
}

// SetSlabStats sets the STAT lines returned for "stats slabs", e.g. "1:chunk_size 96".
func (s *Server) SetSlabStats(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slabStat = lines
}

// SetSettings sets the STAT lines returned for "stats settings".
func (s *Server) SetSettings(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = lines
}

// SetStats sets the STAT lines returned for "stats".
func (s *Server) SetStats(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.general = lines
}

// Commands returns every command line received, in arrival order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()

		reply, hang := s.reply(cmd)
		if hang {
			// Hold the connection open without answering.
			_, _ = r.ReadString('\n')
			return
		}
		if reply == "" {
			return
		}
		_, _ = w.WriteString(reply)
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) reply(cmd string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "ERROR\r\n", false
	}

	var b strings.Builder
	switch {
	case fields[0] == "quit":
		return "", false
	case fields[0] == "stats" && len(fields) == 4 && fields[1] == "cachedump":
		slab, err := strconv.Atoi(fields[2])
		if err != nil {
			return "CLIENT_ERROR bad slab\r\n", false
		}
		if s.hang[slab] {
			return "", true
		}
		for _, it := range s.slabs[slab] {
			fmt.Fprintf(&b, "ITEM %s [%d b; %d s]\r\n", it.Key, len(it.Value), it.Age)
		}
	case fields[0] == "stats" && len(fields) == 2 && fields[1] == "slabs":
		writeStats(&b, s.slabStat)
	case fields[0] == "stats" && len(fields) == 2 && fields[1] == "settings":
		writeStats(&b, s.settings)
	case fields[0] == "stats" && len(fields) == 1:
		writeStats(&b, s.general)
	case fields[0] == "get" || fields[0] == "gets":
		for _, key := range fields[1:] {
			if it, ok := s.lookup(key); ok {
				fmt.Fprintf(&b, "VALUE %s 0 %d 1\r\n", it.Key, len(it.Value))
				b.Write(it.Value)
				b.WriteString("\r\n")
			}
		}
	default:
		return "ERROR\r\n", false
	}
	b.WriteString("END\r\n")
	return b.String(), false
}

func (s *Server) lookup(key string) (Item, bool) {
	slabs := make([]int, 0, len(s.slabs))
	for id := range s.slabs {
		slabs = append(slabs, id)
	}
	sort.Ints(slabs)
	for _, id := range slabs {
		for _, it := range s.slabs[id] {
			if it.Key == key {
				return it, true
			}
		}
	}
	return Item{}, false
}

func writeStats(b *strings.Builder, lines []string) {
	for _, l := range lines {
		b.WriteString("STAT " + l + "\r\n")
	}
}

// Unreachable returns an address nothing listens on.
func Unreachable(t testing.TB) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}
