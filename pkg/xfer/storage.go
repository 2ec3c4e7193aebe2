package xfer

import "github.com/gouuxi/uuxi"

// Storage is the downcall interface of §6: the file-system policy layer
// that layer D's core glue calls into to open files for an outgoing
// transfer, place a completed incoming one, and record the outcome. It
// is deliberately narrow — queue selection, permission checks, and
// spooling conventions are the outer work-request scheduler's job (a
// Non-goal here), not this interface's.
type Storage interface {
	// OpenSend opens the local file named by a granted S/R exchange for
	// reading, returning its size for inclusion in a SendRequest (when
	// the implementation supports the extended size-carrying form).
	OpenSend(path string) (uuxi.File, int64, error)

	// OpenReceive creates the temporary destination for an incoming
	// file with the given permission mode (0 meaning the implementation
	// applies the default 0666, per §4.C's receive-file procedure; pkg/core
	// passes 0 through unchanged).
	OpenReceive(path string, mode uint32) (uuxi.File, error)

	// CommitReceive moves a completed temporary destination into its
	// final place once the whole file has been received and confirmed.
	CommitReceive(tempPath, finalPath string) error

	// Failed records that a transfer did not happen, for logging and
	// cleanup of any partial temporary file.
	Failed(path string, reason uuxi.TransferFailure)
}
