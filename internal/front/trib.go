// Package front implements the user-facing service: sign-up, posting,
// follow graphs and timelines, all expressed over bin-scoped storage.
package front

import "sort"

// Service limits.
const (
	// MinListUser is how many users ListUsers promises once that many exist.
	MinListUser = 20
	// MaxFollowing caps how many users one account may follow.
	MaxFollowing = 2000
	// MaxTribFetch bounds Tribs and Home results; older posts are garbage
	// collected past this horizon.
	MaxTribFetch = 100
	// MaxTribLen is the maximum post length in bytes.
	MaxTribLen = 140
	// MaxUsernameLen is the maximum username length.
	MaxUsernameLen = 15
)

// Trib is one post. The wire form is its JSON encoding.
type Trib struct {
	User    string `json:"user"`
	Message string `json:"message"`
	// Time is wall-clock seconds since the epoch, a tie-breaker only.
	Time uint64 `json:"time"`
	// Clock is the logical timestamp assigned by the poster's bin.
	Clock uint64 `json:"clock"`
}

// less orders tribs by (clock, time, user, message).
func (t *Trib) less(o *Trib) bool {
	if t.Clock != o.Clock {
		return t.Clock < o.Clock
	}
	if t.Time != o.Time {
		return t.Time < o.Time
	}
	if t.User != o.User {
		return t.User < o.User
	}
	return t.Message < o.Message
}

func sortTribs(tribs []*Trib) {
	sort.SliceStable(tribs, func(i, j int) bool { return tribs[i].less(tribs[j]) })
}

// IsValidUsername reports whether name is a legal account name: a lowercase
// letter followed by lowercase letters or digits, at most MaxUsernameLen
// bytes.
func IsValidUsername(name string) bool {
	if len(name) == 0 || len(name) > MaxUsernameLen {
		return false
	}
	if name[0] < 'a' || name[0] > 'z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
