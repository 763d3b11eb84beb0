package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrFlowNotFound    = errors.New("flow not found")
	ErrPolicyNotFound  = errors.New("policy not found")
	ErrOutcomeNotFound = errors.New("integration outcome not found")
	ErrInvalidFlow     = errors.New("invalid flow parameters")
	ErrInvalidPolicy   = errors.New("invalid policy parameters")
)

func invalidFlow(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFlow, fmt.Sprintf(format, args...))
}

func invalidPolicy(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPolicy, fmt.Sprintf(format, args...))
}
