package config

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// Error codes for configuration problems (E200-E299).
const (
	ErrCodeLoad          = "E201" // file could not be read or parsed
	ErrCodeSchema        = "E202" // configuration does not match the schema
	ErrCodeType          = "E203" // invalid internal type
	ErrCodeProvider      = "E204" // invalid or unknown provider
	ErrCodeMapping       = "E205" // invalid or unknown mapping
	ErrCodeRule          = "E206" // invalid sync rule
	ErrCodeTransformer   = "E207" // invalid transformer
	ErrCodeProviderCheck = "E208" // provider rejected a rule endpoint
	ErrCodeNotFound      = "E209" // requested sync or rule does not exist
)

// Error is a configuration error with an optional source position.
type Error struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Code returns the configuration error code of err, or "" if err is not
// a configuration error.
func Code(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
