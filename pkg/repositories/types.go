package repositories

import "fmt"

// ErrUnsupportedScheme is returned by Open for a database URL it cannot serve.
type ErrUnsupportedScheme struct {
	Scheme string
}

func (e *ErrUnsupportedScheme) Error() string {
	return fmt.Sprintf("unsupported database scheme %q", e.Scheme)
}

func IsUnsupportedScheme(err error) bool {
	_, ok := err.(*ErrUnsupportedScheme)
	return ok
}
