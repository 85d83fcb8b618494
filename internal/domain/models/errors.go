package models

import (
	"errors"
	"fmt"
)

// UpstreamError is a non-2xx response or a transport failure.
type UpstreamError struct {
	Provider    string
	Status      int // 0 for transport failures
	BodyExcerpt string
	Err         error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status > 0 && e.BodyExcerpt != "":
		return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, e.BodyExcerpt)
	case e.Status > 0:
		return fmt.Sprintf("%s: upstream status %d", e.Provider, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: upstream request failed: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: upstream error: %s", e.Provider, e.BodyExcerpt)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ParseError is a 2xx response whose body has an unexpected shape.
type ParseError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyResultError means the payload parsed but carried no usable points.
type EmptyResultError struct {
	Provider string
	Dataset  string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s: no observations for %s", e.Provider, e.Dataset)
}

type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	if e.Provider == "" {
		return "provider is required"
	}
	return fmt.Sprintf("unsupported provider %q", e.Provider)
}

type MissingParameterError struct {
	Param string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Param)
}

// InvalidParameterError is a present but unacceptable request value.
type InvalidParameterError struct {
	Param  string
	Value  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

// ConfigurationError is a missing or malformed setting.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration %s is required", e.Field)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsRecoverable reports whether a fallback chain may move on to the next
// candidate after err.
func IsRecoverable(err error) bool {
	var (
		up    *UpstreamError
		parse *ParseError
		empty *EmptyResultError
	)
	return errors.As(err, &up) || errors.As(err, &parse) || errors.As(err, &empty)
}

// IsRequestError reports whether err was caused by the caller's parameters.
func IsRequestError(err error) bool {
	var (
		unsupported *UnsupportedProviderError
		missing     *MissingParameterError
		invalid     *InvalidParameterError
	)
	return errors.As(err, &unsupported) || errors.As(err, &missing) || errors.As(err, &invalid)
}
