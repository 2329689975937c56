// Package cluster describes the set of cache servers mcspy inspects.
//
// # Overview
//
// A cluster is nothing more than an ordered list of memcache servers, each
// addressed as host:port. mcspy never talks to a routing proxy for scanning;
// the caller hands it the real backend list and every server is scanned
// independently.
//
//	┌────────────┐   ┌────────────┐   ┌────────────┐
//	│ server A   │   │ server B   │   │ server C   │
//	│ :11211     │   │ :11211     │   │ :11211     │
//	└─────┬──────┘   └─────┬──────┘   └─────┬──────┘
//	      │                │                │
//	      └────────────────┼────────────────┘
//	                       ▼
//	                ┌─────────────┐
//	                │   scanner   │
//	                └─────────────┘
//
// # Address Forms
//
// ParseServer accepts:
//   - "host" (port defaults to 11211)
//   - "host:port"
//   - "[::1]:port" for IPv6
//
// Lists come in two flavours:
//   - ParseServerList: comma separated, the --servers flag form
//   - SplitServerList: shell-quoted words, the MCSPY_SERVERS form, where each
//     word may also contain commas
//
// Example:
//
//	servers, err := cluster.SplitServerList(`10.0.0.1:11211 "10.0.0.2:11211"`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range servers {
//	    fmt.Println(s.Addr())
//	}
package cluster
