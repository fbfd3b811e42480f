// SPDX-License-Identifier: GPL-3.0-or-later

package mdnscodec

import "sync"

// ErrorLog deduplicates decode diagnostics across messages.
//
// A steady stream of identical malformed packets would otherwise log
// the same full context over and over: the first occurrence of a given
// error text is reported with full context, repeats at reduced detail.
//
// The zero value is ready to use. A single table may be shared by any
// number of concurrent parsers; all methods are safe for concurrent use.
type ErrorLog struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// firstOccurrence records text and reports whether this is the first
// time it has been seen since construction or the last [*ErrorLog.Reset].
func (l *ErrorLog) firstOccurrence(text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = make(map[string]struct{})
	}
	if _, ok := l.seen[text]; ok {
		return false
	}
	l.seen[text] = struct{}{}
	return true
}

// Reset forgets all previously seen error texts.
func (l *ErrorLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = nil
}

// defaultErrorLog serves parsers that do not inject their own table.
var defaultErrorLog = &ErrorLog{}
