package front

import "errors"

// User-facing failures. Transport problems are not among them: the replica
// layer masks single-backend faults and only a dual failure surfaces, as a
// wrapped replica.ErrUnavailable.
var (
	ErrInvalidUsername  = errors.New("invalid username")
	ErrUsernameTaken    = errors.New("username taken")
	ErrUserDoesNotExist = errors.New("user does not exist")
	ErrWhoWhom          = errors.New("cannot follow or unfollow yourself")
	ErrAlreadyFollowing = errors.New("already following")
	ErrNotFollowing     = errors.New("not following")
	ErrFollowingTooMany = errors.New("following too many users")
	ErrTribTooLong      = errors.New("trib too long")
)
