package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError is a panic raised by caller-supplied code, such as a pipeline
// consumer, and recovered by Recover.
type PanicError struct {
	Op    string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("tabprep: %s: recovered panic: %v", e.Op, e.Value)
}

// Format prints the recovered stack with %+v.
func (e *PanicError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s\n%s", e.Error(), e.Stack)
		return
	}
	fmt.Fprint(s, e.Error())
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("panic", fmt.Sprint(e.Value)).
		Str("type", "PanicError")
}

// NewPanicError records value and the current goroutine stack.
func NewPanicError(op string, value interface{}) *PanicError {
	return &PanicError{Op: op, Value: value, Stack: string(debug.Stack())}
}

// Recover turns a panic into an error. Defer it with a pointer to the named
// error result of the enclosing function:
//
//	func (p *Pipeline) fitConsumer(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "Pipeline.consumer.Fit")
//	    return p.consumer.Fit(X, y)
//	}
//
// An error already assigned to *err is kept as the cause.
func Recover(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	if *err != nil {
		*err = errors.Wrapf(*err, "tabprep: %s: recovered panic: %v", op, r)
		return
	}
	*err = NewPanicError(op, r)
}
