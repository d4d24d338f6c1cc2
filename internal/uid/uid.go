// Package uid generates the note identifiers used throughout mnemo.
//
// A UID is a 22-character string: a UTC timestamp to microsecond precision
// (YYYYMMDD'T'HHMMSS, six microsecond digits, 'Z'), kept strictly
// increasing within a process so that UIDs sort lexicographically in
// creation order and never collide within a process.
package uid

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

const (
	// layout is the date and seconds portion, YYYYMMDD'T'HHMMSS; New
	// appends the six microsecond digits and 'Z'.
	layout = "20060102T150405"
	// Length is the fixed length of a well-formed UID.
	Length = 22
)

var pattern = regexp.MustCompile(`^\d{8}T\d{6}\d{6}Z$`)

var (
	mu        sync.Mutex
	lastMicro int64
)

// New returns a fresh, strictly increasing UID.
//
// The clock is read to microsecond precision; if two calls land in the
// same (or an earlier, post-adjustment) microsecond the microsecond value
// is bumped past the last one issued so successive UIDs never repeat and always sort after the last
// one issued by this process.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	micro := time.Now().UTC().UnixMicro()
	if micro <= lastMicro {
		micro = lastMicro + 1
	}
	lastMicro = micro

	t := time.UnixMicro(micro).UTC()
	return fmt.Sprintf("%s%06dZ", t.Format(layout), t.Nanosecond()/1000)
}

// Valid reports whether s has the syntactic shape of a UID. It does not
// verify the timestamp component denotes a real instant.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	return pattern.MatchString(s)
}
