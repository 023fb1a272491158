package store

import "errors"

var (
	// ErrDirCreate reports a session directory that is absent and
	// could not be created.
	ErrDirCreate = errors.New("cannot create session directory")

	// ErrIO reports an open/read/write/close/delete failure on a
	// session file.
	ErrIO = errors.New("session file I/O failed")

	// ErrDeserialize reports a session file whose contents are not a
	// valid YAML mapping. The file is left untouched.
	ErrDeserialize = errors.New("session file is not valid YAML")

	// ErrLockTimeout reports that the exclusive lock was not acquired
	// within the configured timeout.
	ErrLockTimeout = errors.New("session file lock timed out")

	// ErrInvalidID reports a session id that cannot be used as a file
	// name stem.
	ErrInvalidID = errors.New("invalid session id")
)
