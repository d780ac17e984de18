package commitlog

import "errors"

// ErrIllegalState is returned by every operation once the commit log
// has been stopped; construction is the only operation exempt.
var ErrIllegalState = errors.New("commitlog: illegal state, commit log is not enabled")

// ErrInterrupted is returned by WaitForVersion when its context is
// cancelled before the condition is satisfied.
var ErrInterrupted = errors.New("commitlog: interrupted while waiting for version")
