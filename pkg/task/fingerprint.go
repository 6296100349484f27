package task

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"time"
)

// fingerprintTimeLayout pins CreatedAt to microsecond UTC so a task that
// round-trips through the remote store (timestamptz precision) fingerprints
// identically on the way back.
const fingerprintTimeLayout = "2006-01-02T15:04:05.000000Z"

// Fingerprint computes a stable SHA-256 digest of a task's remotely-persisted
// fields, in fixed order. Two tasks with equal persisted content always
// produce the same fingerprint, which is how the sync engine tells genuine
// edits from echoes of its own writes. Every field is length-prefixed so
// boundaries are unambiguous: ["a,b"] and ["a","b"] must not collide, nor a
// separator in a title with one in a description.
func Fingerprint(t Task) string {
	h := sha256.New()
	fields := []string{
		t.Title,
		t.Description,
		strconv.Itoa(t.TimeEstimate),
		string(t.Priority),
		string(t.Status),
		t.CreatedAt.UTC().Truncate(time.Microsecond).Format(fingerprintTimeLayout),
		t.ScheduledDate,
		t.ScheduledTime,
	}
	for _, f := range fields {
		fmt.Fprintf(h, "%d:%s", len(f), f)
	}
	for _, tag := range t.Tags {
		fmt.Fprintf(h, "t%d:%s", len(tag), tag)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
