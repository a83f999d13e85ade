package domain

import (
	"errors"
	"fmt"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrWarrantyNotFound = errors.New("warranty not found")

	// ErrExtractionUnavailable is fatal for a pipeline job: neither direct
	// text extraction nor optical recognition produced any text.
	ErrExtractionUnavailable = errors.New("extraction unavailable")

	// ErrResolverUnreachable is recovered internally via fallback terms.
	ErrResolverUnreachable = errors.New("terms resolver unreachable")

	// ErrInferenceUnavailable is recovered internally via the template
	// summary renderer.
	ErrInferenceUnavailable = errors.New("inference backend unavailable")

	ErrMalformedOverride = errors.New("malformed override")
	ErrDuplicateJob      = errors.New("artifact already has an active job")

	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
