package service

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncInProgress is returned when a sync is requested while another is running
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrInvalidOptions is returned for option combinations a sync cannot honour
	ErrInvalidOptions = errors.New("invalid sync options")
)

// StoreError marks a persistence failure that aborts the current run
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StoreError
	if errors.As(err, &existing) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
