package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a prefixed ULID, e.g. "job_01J...". ULIDs are sortable
// (nice for DB indexes and dashboards).
func NewID(prefix string) string {
	t := time.Now().UTC()
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NewJobID() string      { return NewID("job") }
func NewMessageID() string  { return NewID("msg") }
func NewEventID() string    { return NewID("evt") }
func NewCustomerID() string { return NewID("cus") }

// RenderTemplate does simple {var} replacement. Template bodies live on the
// campaign row; vars come from the recipient.
func RenderTemplate(body string, vars map[string]string) string {
	out := body
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// FirstName returns the first whitespace token of a full name, falling back
// to a generic label for empty names.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

// Partition splits items into fixed-size slices, preserving order. The last
// slice may be short. A size <= 0 yields a single slice.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
