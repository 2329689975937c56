// Package taxonomy recovers the (prefix, bin, item) structure of cache keys.
//
// Application cache layers build keys from a namespace prefix, a storage bin
// and an item id, but different generators join them differently. The parser
// tries an ordered list of strategies:
//
//	key: "site%3Acache_page%3Anode%2F1"   no literal ':'  → percent-colon
//	      prefix=site bin=cache_page item=node%2F1
//
//	key: "site-cache_menu-main-links"                     → dash
//	      prefix=site bin=cache_menu item=main-links
//
//	key: "nodashnocolon"                                  → unparseable
//
// The first strategy that applies owns the key, so appending a new
// convention never changes how existing keys are classified. A record is
// produced only when both prefix and bin are non-empty; unparseable keys stay
// in the raw snapshot but are left out of classified reports.
package taxonomy
