package config

import (
	"errors"
	"fmt"
)

// NotConfiguredError reports a missing or unusable setting. The HTTP
// layer translates it to a 500 because no amount of retrying fixes a
// configuration problem.
type NotConfiguredError struct {
	Setting string
	Reason  string
}

func (e *NotConfiguredError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Setting, e.Reason)
	}
	return fmt.Sprintf("%s is not configured", e.Setting)
}

// NewNotConfigured builds a NotConfiguredError for a missing setting
func NewNotConfigured(setting string) error {
	return &NotConfiguredError{Setting: setting}
}

// IsNotConfigured reports whether err is a configuration error
func IsNotConfigured(err error) bool {
	var nc *NotConfiguredError
	return errors.As(err, &nc)
}
