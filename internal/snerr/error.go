// Package snerr provides the error taxonomy shared across the snekcloud node runtime.
package snerr

import "fmt"

// Kind classifies a snekcloud error so callers can branch on it with errors.As.
type Kind int

const (
	Transport Kind = iota
	IO
	Base64Decode
	TomlSerialize
	TomlDeserialize
	JSON
	InvalidKey
	Config
	GlobPattern
	Storage
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case IO:
		return "io"
	case Base64Decode:
		return "base64_decode"
	case TomlSerialize:
		return "toml_serialize"
	case TomlDeserialize:
		return "toml_deserialize"
	case JSON:
		return "json"
	case InvalidKey:
		return "invalid_key"
	case Config:
		return "config"
	case GlobPattern:
		return "glob_pattern"
	case Storage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind for classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap creates a new Error of the given Kind wrapping err. Returns nil if err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// IsKind reports whether err is a *Error of the given Kind, unwrapping as needed.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if se, ok := err.(*Error); ok {
			e = se
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
