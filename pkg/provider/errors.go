package provider

import "fmt"

// NotFoundError reports an insert target collection that could not be
// opened or created.
type NotFoundError struct {
	Collection string
	Err        error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("collection [%s] not found: %v", e.Collection, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }
