package authority

import (
	"errors"
	"fmt"
)

var (
	// ErrPlayerNotReady is returned for players whose join has not completed.
	ErrPlayerNotReady = errors.New("player not ready")
	// ErrInvalidAmount is returned when crediting a non-positive amount or one
	// that would overflow the player's currency.
	ErrInvalidAmount = errors.New("amount must be positive and fit the balance")
)

// ErrInvalidRequest wraps a purchase request that failed validation.
type ErrInvalidRequest struct {
	Err error
}

func (e *ErrInvalidRequest) Error() string {
	return fmt.Sprintf("invalid purchase request: %v", e.Err)
}

func (e *ErrInvalidRequest) Unwrap() error {
	return e.Err
}

func IsInvalidRequest(err error) bool {
	var target *ErrInvalidRequest
	return errors.As(err, &target)
}
