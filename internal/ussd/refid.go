package ussd

import (
	"strconv"
	"time"
)

// ReferencePrefix starts every reference id shown to subscribers.
const ReferencePrefix = "INK"

// NewReferenceID returns INK followed by the last eight digits of the epoch
// milliseconds. It is meant for display, not for uniqueness guarantees.
func NewReferenceID(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return ReferencePrefix + ms
}
