package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const Stacktrace = "stacktrace"

// Unexported but considered part of the stable interface of pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// WithStacktrace returns a new logrus.Entry obtained by adding error information and, if available, a stack trace
// as fields to the provided logrus.Entry.
func WithStacktrace(logger *logrus.Entry, err error) *logrus.Entry {
	logger = logger.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		logger = logger.WithField(Stacktrace, stack)
	}
	return logger
}

// StdWithStacktrace is WithStacktrace on the standard logger.
func StdWithStacktrace(err error) *logrus.Entry {
	return WithStacktrace(logrus.NewEntry(logrus.StandardLogger()), err)
}

// ExtractStack returns the innermost stack trace recorded in the chain of err, following both pkg/errors causes
// and fmt.Errorf %w wrapping. Returns nil if no error in the chain carries a stack.
func ExtractStack(err error) errors.StackTrace {
	var stack errors.StackTrace
	for err != nil {
		if stackErr, ok := err.(stackTracer); ok {
			stack = stackErr.StackTrace()
		}
		err = errors.Unwrap(err)
	}
	return stack
}
