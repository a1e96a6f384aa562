// Package timer implements draft.Scheduler backends that fire turn resolve tasks.
package timer

import "errors"

// ErrUnknownHandle is returned by Cancel when the task already fired or never existed.
var ErrUnknownHandle = errors.New("unknown timer handle")
