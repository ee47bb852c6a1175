package table

import (
	"github.com/pkg/errors"
)

var ErrTableNotFound = errors.New("table not found")

type InvalidMessageError struct {
	Msg string
}

func (e InvalidMessageError) Error() string {
	return e.Msg
}
