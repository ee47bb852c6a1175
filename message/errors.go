package message

import "fmt"

// ValidationError is returned when a message or action is built from an illegal
// combination of fields. Such values are never transmitted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnsupportedValueError is returned by the codecs for future values they cannot encode.
type UnsupportedValueError struct {
	Value interface{}
}

func (e UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported future value of type %T", e.Value)
}

type DecodeError struct {
	Codec string
	Err   error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("%s decode: %s", e.Codec, e.Err)
}

func (e DecodeError) Cause() error {
	return e.Err
}

func (e DecodeError) Unwrap() error {
	return e.Err
}
