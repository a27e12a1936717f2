package errs

import (
	stderrors "errors"
	"strings"

	"github.com/pkg/errors"
)

// CodeError is the structured error carried back to a client inside an
// error envelope. Code is the wire-level error_code, Msg the human message,
// Detail optional extra context.
type CodeError struct {
	Code   string `json:"error_code"`
	Msg    string `json:"message"`
	Detail string `json:"details,omitempty"`
}

func NewCodeError(code, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, e.Code, e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, ": ")
}

// WithDetail returns a copy carrying extra detail; the base error is shared
// and must stay immutable.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !stderrors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// AsCodeError unwraps err down to a *CodeError if one is in the chain.
func AsCodeError(err error) (*CodeError, bool) {
	var ce *CodeError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Wrap / WrapMsg add stack context via pkg/errors.
func Wrap(err error) error { return errors.WithStack(err) }

func WrapMsg(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

func New(msg string) error { return errors.New(msg) }
