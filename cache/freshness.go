package cache

import "time"

// freshness is the outcome of classifying an entry's age.
type freshness uint8

const (
	// fresh: serve as is.
	fresh freshness = iota
	// stale: serve as is and make sure a refresh is running.
	stale
	// expired: drop and load synchronously.
	expired
)

func (f freshness) String() string {
	switch f {
	case stale:
		return "stale"
	case expired:
		return "expired"
	default:
		return "fresh"
	}
}

// ttls holds the write-based deadlines in nanoseconds; 0 disables one.
type ttls struct {
	expireAfter  int64
	refreshAfter int64
}

func newTTLs(expireAfter, refreshAfter time.Duration) ttls {
	return ttls{expireAfter: int64(expireAfter), refreshAfter: int64(refreshAfter)}
}

// classify is evaluated once per access with a single clock reading, so the
// two comparisons cannot disagree about "now". Hard expiry wins over refresh.
func (t ttls) classify(now, written int64) freshness {
	age := now - written
	if t.expireAfter > 0 && age >= t.expireAfter {
		return expired
	}
	if t.refreshAfter > 0 && age >= t.refreshAfter {
		return stale
	}
	return fresh
}

// expires reports whether any entry can ever become expired.
func (t ttls) expires() bool { return t.expireAfter > 0 }
