package service

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"syscall"

	"google.golang.org/api/googleapi"
)

// Kinds of error raised by the workflow components.
// Use errors.Is(err, service.ErrXXX) to check the kind of an error.
var (
	ErrFileNotFound = errors.New("file not found")
	ErrFormat       = errors.New("format error")
	ErrAuth         = errors.New("authentication error")
	ErrQuery        = errors.New("query error")
	ErrNetwork      = errors.New("network error")
	ErrStorage      = errors.New("storage error")
	ErrArchive      = errors.New("archive error")
	ErrNotFound     = errors.New("not found")
	ErrConfig       = errors.New("configuration error")
)

var kinds = []error{ErrFileNotFound, ErrFormat, ErrAuth, ErrQuery, ErrNetwork, ErrStorage, ErrArchive, ErrNotFound, ErrConfig}

// KindError tags an error with one of the kinds above
type KindError struct {
	Kind error
	Err  error
}

func (e *KindError) Error() string   { return e.Err.Error() }
func (e *KindError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Wrap tags err with the given kind. Returns nil if err is nil.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &KindError{Kind: kind, Err: err}
}

// Wrapf is a shortcut for Wrap(kind, fmt.Errorf(format, a...))
func Wrapf(kind error, format string, a ...interface{}) error {
	return Wrap(kind, fmt.Errorf(format, a...))
}

// Kind returns the kind of the error or nil if the error is not tagged
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ErrProductNotFound is an error returned when a product is not found or available
type ErrProductNotFound struct {
	Product string
}

func (e ErrProductNotFound) Error() string {
	return fmt.Sprintf("Product not found or unavailable: %s", e.Product)
}

// Is implements errors.Is: an ErrProductNotFound is an ErrNotFound
func (e ErrProductNotFound) Is(target error) bool {
	return target == ErrNotFound
}

type errTmpIf interface{ Temporary() bool }
type errTmp struct{ error }

func (t errTmp) Temporary() bool    { return true }
func (t *errTmp) Unwrap() error     { return t.error }
func MakeTemporary(err error) error { return &errTmp{err} }

// Temporary inspects the error trace and returns whether the error is transient
func Temporary(err error) bool {
	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	//First override some default syscall temporary statuses
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.EBUSY, syscall.ECANCELED, syscall.ECONNABORTED, syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ENOMEM, syscall.EPIPE:
			return true
		}
	}

	//first check explicitely marked error
	var tmp errTmpIf
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	var gapiError *googleapi.Error
	if errors.As(err, &gapiError) {
		return gapiError.Code == 429 || gapiError.Code == 500
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// TransportError tags err as ErrNetwork if the error is due to the transport, as kind otherwise
func TransportError(kind, err error) error {
	if err == nil {
		return nil
	}
	var uerr *neturl.Error
	if errors.As(err, &uerr) || Temporary(err) {
		return Wrap(ErrNetwork, err)
	}
	return Wrap(kind, err)
}

// MergeErrors, appending texts
// if priorityToErr is true, priority to the first error with a kind
// else, priority to no error.
func MergeErrors(priorityToError bool, err error, newErrs ...error) error {
	if len(newErrs) == 0 {
		return err
	}
	newErr := newErrs[0]

	if newErr == nil {
		if !priorityToError {
			return nil
		}
	} else if err == nil {
		err = newErr
	} else if !priorityToError || Kind(err) != nil || Kind(newErr) == nil {
		err = fmt.Errorf("%w\n %v", err, newErr)
	} else {
		err = fmt.Errorf("%w\n %v", newErr, err)
	}
	return MergeErrors(priorityToError, err, newErrs[1:]...)
}
