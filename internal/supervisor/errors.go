package supervisor

import "errors"

// ErrAlreadyRunning is returned when Run is called a second time.
var ErrAlreadyRunning = errors.New("supervisor already running")

// invalidConfigError signals a Config that cannot be used.
type invalidConfigError struct{ msg string }

func (e invalidConfigError) Error() string { return "invalid supervisor config: " + e.msg }

// IsInvalidConfig reports whether err was caused by an unusable Config.
func IsInvalidConfig(err error) bool {
	var ice invalidConfigError
	return errors.As(err, &ice)
}
