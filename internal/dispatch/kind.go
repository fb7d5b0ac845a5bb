package dispatch

import (
	"errors"

	"github.com/gluk-w/mcp-ssh/internal/sftpxfer"
	"github.com/gluk-w/mcp-ssh/internal/sshmanager"
)

// Kind classifies an error returned by a Dispatcher operation.
type Kind string

const (
	KindInvalidParams     Kind = "invalid_params"
	KindAlreadyExists     Kind = "already_exists"
	KindNotFound          Kind = "not_found"
	KindLocalFileNotFound Kind = "local_file_not_found"
	KindLimitReached      Kind = "limit_reached"
	KindRemote            Kind = "remote"
)

// KindOf returns the class of err. Anything unrecognized is a remote failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, sftpxfer.ErrLocalNotRegular):
		return KindInvalidParams
	case errors.Is(err, sshmanager.ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, sshmanager.ErrNotFound):
		return KindNotFound
	case errors.Is(err, sftpxfer.ErrLocalFileNotFound):
		return KindLocalFileNotFound
	case errors.Is(err, sshmanager.ErrTooManyConnections):
		return KindLimitReached
	default:
		return KindRemote
	}
}
