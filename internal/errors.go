package internal

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrPersistence = errors.New("persistence failed")
	ErrConversion  = errors.New("conversion failed")
	ErrConfig      = errors.New("invalid configuration")
	ErrNotFound    = errors.New("subscription not found")
	ErrAmbiguous   = errors.New("ambiguous subscription reference")
)

// ValidationError reports the first field that failed validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError wraps an I/O failure on the backing store
type PersistenceError struct {
	Op   string // "load", "append", "replace"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// ConversionError reports a failed rate lookup for a currency pair
type ConversionError struct {
	From CurrencyCode
	To   CurrencyCode
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %s to %s: %v", e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrConversion
}

// ConfigError reports a missing or malformed configuration value
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
