package version

import "errors"

// ErrCrossSnapshot is returned by Compare when the two versions were
// generated against different cluster snapshots and cannot be
// compared without an explicit ProjectOnto first.
var ErrCrossSnapshot = errors.New("version: comparison across different cluster snapshots")
