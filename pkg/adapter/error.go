package adapter

import "fmt"

// AdapterError wraps provider errors with status metadata.
type AdapterError struct {
	Adapter string
	Status  int
	Err     error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s adapter error (status=%d)", e.Adapter, e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
