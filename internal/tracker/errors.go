package tracker

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures returned by the tracker.
type ErrorKind int

const (
	// KindInvalidArgument is returned before any storage access.
	KindInvalidArgument ErrorKind = iota + 1
	// KindStorageRead means an aggregate query failed.
	KindStorageRead
	// KindStorageWrite means an insert or delete failed.
	KindStorageWrite
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindStorageRead:
		return "storage read"
	case KindStorageWrite:
		return "storage write"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the typed failure returned by every tracker operation. The tracker
// never retries; the caller decides what to do with it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a tracker Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

func invalidArgument(op, format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf(format, args...)}
}
