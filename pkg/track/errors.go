package track

import "errors"

// ErrNoPositionData is returned by Start when no series carries any samples.
var ErrNoPositionData = errors.New("no position data")
