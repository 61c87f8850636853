package front

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"tribbler/internal/store"
)

// Reserved subkeys inside a user's bin, plus the shared registry bin.
const (
	keySignedUp     = "signed_up"
	keyFollowLog    = "follow_log"
	keyFollowingNum = "following_num"
	keyTribs        = "tribs"
	keyUserNumber   = "user_number"

	binMain        = "main"
	keyGlobalUsers = "global_users"

	// followLogStart seeds a fresh follow_log so the list exists before the
	// first follow.
	followLogStart = "start"
)

// Server is the front-end. It is stateless beyond the bin-storage handle, so
// any number of instances can serve the same fleet.
type Server struct {
	bins store.BinStorage
}

func NewServer(bins store.BinStorage) *Server {
	return &Server{bins: bins}
}

// mustExist resolves user's bin and verifies the sign-up witness.
func (s *Server) mustExist(ctx context.Context, user string) (store.Storage, error) {
	bin := s.bins.Bin(user)
	_, err := bin.Get(ctx, keySignedUp)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserDoesNotExist, user)
	}
	if err != nil {
		return nil, err
	}
	return bin, nil
}

// SignUp creates a user. Concurrent sign-ups of the same name may both
// succeed; the bin converges to the same state either way.
func (s *Server) SignUp(ctx context.Context, user string) error {
	if !IsValidUsername(user) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, user)
	}

	bin := s.bins.Bin(user)
	_, err := bin.Get(ctx, keySignedUp)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrUsernameTaken, user)
	case errors.Is(err, store.ErrNotFound):
	default:
		return err
	}

	if _, err := bin.Set(ctx, store.KeyValue{Key: keySignedUp, Value: user}); err != nil {
		return err
	}
	if _, err := bin.ListAppend(ctx, store.KeyValue{Key: keyFollowLog, Value: followLogStart}); err != nil {
		return err
	}
	if _, err := bin.Set(ctx, store.KeyValue{Key: keyFollowingNum, Value: "0"}); err != nil {
		return err
	}

	// Register among the first MinListUser users. The registry list is
	// authoritative; user_number is only an advisory cache of its size.
	main := s.bins.Bin(binMain)
	users, err := main.ListGet(ctx, keyGlobalUsers)
	if err != nil {
		return err
	}
	if len(users) < MinListUser {
		if _, err := main.ListAppend(ctx, store.KeyValue{Key: keyGlobalUsers, Value: user}); err != nil {
			return err
		}
	}
	if _, err := bin.Set(ctx, store.KeyValue{Key: keyUserNumber, Value: strconv.Itoa(len(users) + 1)}); err != nil {
		return err
	}
	return nil
}

// ListUsers returns up to MinListUser registered users, sorted. Concurrent
// sign-ups can append a name twice; sorting and deduplicating here hides
// that.
func (s *Server) ListUsers(ctx context.Context) ([]string, error) {
	users, err := s.bins.Bin(binMain).ListGet(ctx, keyGlobalUsers)
	if err != nil {
		return nil, err
	}
	sort.Strings(users)
	out := make([]string, 0, len(users))
	for i, u := range users {
		if i > 0 && u == users[i-1] {
			continue
		}
		out = append(out, u)
		if len(out) == MinListUser {
			break
		}
	}
	return out, nil
}

// Post appends a trib to who's timeline. clock is the highest logical clock
// the caller has observed; the stored clock never runs behind it.
func (s *Server) Post(ctx context.Context, who, message string, clock uint64) error {
	if len(message) > MaxTribLen {
		return ErrTribTooLong
	}
	bin, err := s.mustExist(ctx, who)
	if err != nil {
		return err
	}

	ts, err := bin.Clock(ctx, clock)
	if err != nil {
		return err
	}
	trib := Trib{
		User:    who,
		Message: message,
		Time:    uint64(time.Now().Unix()),
		Clock:   ts,
	}
	data, err := json.Marshal(&trib)
	if err != nil {
		return err
	}
	_, err = bin.ListAppend(ctx, store.KeyValue{Key: keyTribs, Value: string(data)})
	return err
}

// tribEntry pairs a decoded trib with its stored wire form so garbage
// collection can remove the exact element.
type tribEntry struct {
	trib *Trib
	raw  string
}

func (s *Server) readTribs(ctx context.Context, bin store.Storage) ([]tribEntry, error) {
	raws, err := bin.ListGet(ctx, keyTribs)
	if err != nil {
		return nil, err
	}
	entries := make([]tribEntry, 0, len(raws))
	for _, raw := range raws {
		var t Trib
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode trib: %w", err)
		}
		entries = append(entries, tribEntry{trib: &t, raw: raw})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].trib.less(entries[j].trib) })
	return entries, nil
}

// Tribs returns who's most recent MaxTribFetch posts in timeline order and
// garbage-collects anything older.
func (s *Server) Tribs(ctx context.Context, who string) ([]*Trib, error) {
	bin, err := s.mustExist(ctx, who)
	if err != nil {
		return nil, err
	}
	entries, err := s.readTribs(ctx, bin)
	if err != nil {
		return nil, err
	}

	start := 0
	if len(entries) > MaxTribFetch {
		start = len(entries) - MaxTribFetch
	}
	for _, e := range entries[:start] {
		if _, err := bin.ListRemove(ctx, store.KeyValue{Key: keyTribs, Value: e.raw}); err != nil {
			return nil, err
		}
	}

	out := make([]*Trib, 0, len(entries)-start)
	for _, e := range entries[start:] {
		out = append(out, e.trib)
	}
	return out, nil
}

func followRecord(clock uint64, verb, whom string) string {
	return fmt.Sprintf("%d::%s::%s", clock, verb, whom)
}

// replay walks the follow log in order and returns the follow state toward
// whom. When stopAt is non-empty the walk halts at the first matching
// record, yielding the state that held just before it was appended.
func replay(log []string, whom, stopAt string) bool {
	following := false
	for _, record := range log {
		if stopAt != "" && record == stopAt {
			break
		}
		switch {
		case strings.HasSuffix(record, "::follow::"+whom):
			following = true
		case strings.HasSuffix(record, "::unfollow::"+whom):
			following = false
		}
	}
	return following
}

func (s *Server) followingNum(ctx context.Context, bin store.Storage, who string) (int, error) {
	raw, err := bin.Get(ctx, keyFollowingNum)
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("follow counter missing for %s", who)
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("follow counter for %s: %w", who, err)
	}
	return n, nil
}

// Follow makes who follow whom. The log entry is appended first, then the
// log is replayed up to that entry: if who was already following, the
// operation fails and the duplicate entry stays in the log, where replay
// renders it harmless.
func (s *Server) Follow(ctx context.Context, who, whom string) error {
	if who == whom {
		return fmt.Errorf("%w: %s", ErrWhoWhom, who)
	}
	bin, err := s.mustExist(ctx, who)
	if err != nil {
		return err
	}
	if _, err := s.mustExist(ctx, whom); err != nil {
		return err
	}

	ts, err := bin.Clock(ctx, 0)
	if err != nil {
		return err
	}
	record := followRecord(ts, "follow", whom)
	if _, err := bin.ListAppend(ctx, store.KeyValue{Key: keyFollowLog, Value: record}); err != nil {
		return err
	}
	log, err := bin.ListGet(ctx, keyFollowLog)
	if err != nil {
		return err
	}
	if replay(log, whom, record) {
		return fmt.Errorf("%w: %s -> %s", ErrAlreadyFollowing, who, whom)
	}

	n, err := s.followingNum(ctx, bin, who)
	if err != nil {
		return err
	}
	n++
	if n > MaxFollowing {
		if _, err := bin.ListRemove(ctx, store.KeyValue{Key: keyFollowLog, Value: record}); err != nil {
			return err
		}
		return ErrFollowingTooMany
	}
	_, err = bin.Set(ctx, store.KeyValue{Key: keyFollowingNum, Value: strconv.Itoa(n)})
	return err
}

// Unfollow is the inverse of Follow, with the same append-then-replay
// discipline.
func (s *Server) Unfollow(ctx context.Context, who, whom string) error {
	if who == whom {
		return fmt.Errorf("%w: %s", ErrWhoWhom, who)
	}
	bin, err := s.mustExist(ctx, who)
	if err != nil {
		return err
	}
	if _, err := s.mustExist(ctx, whom); err != nil {
		return err
	}

	ts, err := bin.Clock(ctx, 0)
	if err != nil {
		return err
	}
	record := followRecord(ts, "unfollow", whom)
	if _, err := bin.ListAppend(ctx, store.KeyValue{Key: keyFollowLog, Value: record}); err != nil {
		return err
	}
	log, err := bin.ListGet(ctx, keyFollowLog)
	if err != nil {
		return err
	}
	if !replay(log, whom, record) {
		return fmt.Errorf("%w: %s -> %s", ErrNotFollowing, who, whom)
	}

	n, err := s.followingNum(ctx, bin, who)
	if err != nil {
		return err
	}
	if n > 0 {
		n--
	}
	_, err = bin.Set(ctx, store.KeyValue{Key: keyFollowingNum, Value: strconv.Itoa(n)})
	return err
}

// IsFollowing reports whether who currently follows whom, by full replay.
func (s *Server) IsFollowing(ctx context.Context, who, whom string) (bool, error) {
	if who == whom {
		return false, fmt.Errorf("%w: %s", ErrWhoWhom, who)
	}
	bin, err := s.mustExist(ctx, who)
	if err != nil {
		return false, err
	}
	if _, err := s.mustExist(ctx, whom); err != nil {
		return false, err
	}
	log, err := bin.ListGet(ctx, keyFollowLog)
	if err != nil {
		return false, err
	}
	return replay(log, whom, ""), nil
}

// Following replays the whole log and returns the current follow set,
// sorted.
func (s *Server) Following(ctx context.Context, who string) ([]string, error) {
	bin, err := s.mustExist(ctx, who)
	if err != nil {
		return nil, err
	}
	log, err := bin.ListGet(ctx, keyFollowLog)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	for _, record := range log {
		parts := strings.SplitN(record, "::", 3)
		if len(parts) != 3 {
			continue
		}
		switch parts[1] {
		case "follow":
			set[parts[2]] = true
		case "unfollow":
			delete(set, parts[2])
		}
	}

	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out, nil
}

// Home merges user's timeline with everyone they follow and returns the most
// recent MaxTribFetch entries.
func (s *Server) Home(ctx context.Context, user string) ([]*Trib, error) {
	if _, err := s.mustExist(ctx, user); err != nil {
		return nil, err
	}
	following, err := s.Following(ctx, user)
	if err != nil {
		return nil, err
	}

	home, err := s.Tribs(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, w := range following {
		tribs, err := s.Tribs(ctx, w)
		if err != nil {
			return nil, err
		}
		home = append(home, tribs...)
	}

	sortTribs(home)
	if len(home) > MaxTribFetch {
		home = home[len(home)-MaxTribFetch:]
	}
	return home, nil
}
