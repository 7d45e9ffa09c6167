package stage

import "fmt"

// WriteError reports a failed object upload.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("upload %q failed: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// StoreError reports a failed signing or store operation.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %q failed: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
