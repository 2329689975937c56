package report

import (
	"net/url"
	"regexp"

	"github.com/dreamware/mcspy/internal/storage"
)

// Placeholders substituted for elided parts of an item.
const (
	HashPlaceholder    = "{hash}"
	HexHashPlaceholder = "{hex-hash}"
	NumPlaceholder     = "{num}"
)

// PatternSeparator joins a bin and an elided item into a pattern key.
const PatternSeparator = " => "

// elisions run in order. Template hashes go first so the generic hex rule
// never sees a half-replaced template suffix. No placeholder contains a run
// of six hex digits or a digit, so a second pass changes nothing.
var elisions = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\.html_[a-zA-Z0-9_-]{6,100}`), ".html_" + HashPlaceholder},
	{regexp.MustCompile(`\.html\.twig_[a-zA-Z0-9_-]{6,100}`), ".html.twig_" + HashPlaceholder},
	{regexp.MustCompile(`[0-9a-f]{6,100}`), HexHashPlaceholder},
	{regexp.MustCompile(`:\d+`), ":" + NumPlaceholder},
}

// ElidePattern reduces an item id to its template: the item is URL-decoded,
// then template hashes, hex runs and ":<digits>" suffixes are replaced with
// placeholders. Items that fail to decode are elided as they are.
// Each call decodes one level, so only the placeholders are stable across
// repeated calls: a doubly encoded item loses one more level on a second call.
func ElidePattern(item string) string {
	if decoded, err := url.QueryUnescape(item); err == nil {
		item = decoded
	}
	for _, e := range elisions {
		item = e.re.ReplaceAllLiteralString(item, e.repl)
	}
	return item
}

// PatternKey returns "<bin> => <elided item>" for r.
func PatternKey(r storage.ParsedRecord) string {
	return r.Bin + PatternSeparator + ElidePattern(r.Item)
}

// Patterns clusters records by PatternKey and returns the limit most common
// patterns, most frequent first.
func Patterns(records []storage.ParsedRecord, limit int) []Count {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = PatternKey(r)
	}
	return Frequency(keys, limit)
}
