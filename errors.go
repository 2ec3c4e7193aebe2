package uuxi

import (
	"errors"
	"fmt"
)

// Sentinel errors. ErrOutOfMemory, ErrSyncFailed, ErrRetriesExhausted,
// ErrBudgetExceeded and ErrPortClosed are transport-fatal: the session
// cannot make further progress. ErrIllegalArgument marks a malformed
// command line and ErrInvalidState a call made in the wrong session state.
var (
	ErrIllegalArgument  = errors.New("error in function arguments")
	ErrOutOfMemory      = errors.New("buffer allocation failed")
	ErrSyncFailed       = errors.New("sync handshake exhausted retries")
	ErrRetriesExhausted = errors.New("packet retry budget exhausted")
	ErrBudgetExceeded   = errors.New("error budget exceeded")
	ErrPortClosed       = errors.New("port is closed")
	ErrInvalidState     = errors.New("operation not valid in current session state")
)

// CheckInvariant aborts the session with a diagnostic when cond is false.
// It stands in for the original's "can't happen" assertions: conditions a
// caller's own bookkeeping must already guarantee, not something the wire
// or the filesystem can trigger, so there is nothing a caller could
// usefully recover from by returning an error instead.
func CheckInvariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("uuxi: invariant violation: "+format, args...))
	}
}

// TransferFailure enumerates why a single file transfer (not the session)
// failed. It maps directly onto the N2/N4/N6/N response suffixes.
type TransferFailure int

const (
	FailNone TransferFailure = iota
	FailPermission
	FailOpen
	FailSize
	FailOther
)

func (f TransferFailure) String() string {
	switch f {
	case FailPermission:
		return "permission denied"
	case FailOpen:
		return "remote cannot create work files"
	case FailSize:
		return "file too big"
	case FailOther:
		return "transfer failed"
	default:
		return "ok"
	}
}
