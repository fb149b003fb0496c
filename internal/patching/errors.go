package patching

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIdentityUnavailable is returned by a strict Collector when one or more
// host identity fields could not be determined.
var ErrIdentityUnavailable = errors.New("host identity unavailable")

// ErrNoSources indicates a SourceSet was built without any sources.
var ErrNoSources = errors.New("no installed-patch sources configured")

// SourceError records which installed-patch source failed.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s source failed: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func identityError(missing []string, cause error) error {
	msg := "missing " + strings.Join(missing, ", ")
	if cause != nil {
		return fmt.Errorf("%w: %s: %w", ErrIdentityUnavailable, msg, cause)
	}
	return fmt.Errorf("%w: %s", ErrIdentityUnavailable, msg)
}
