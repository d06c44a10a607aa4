package asset

import (
	"errors"
	"fmt"
	"strings"

	"reelforge/internal/services"
)

var (
	ErrEmptyAsset           = fmt.Errorf("%w: empty asset", services.ErrValidation)
	ErrUnsupportedExtension = fmt.Errorf("%w: unsupported extension", services.ErrValidation)
	ErrContentTypeMismatch  = fmt.Errorf("%w: content type mismatch", services.ErrValidation)
	ErrAssetTooLarge        = fmt.Errorf("%w: asset too large", services.ErrValidation)
)

// Candidate describes an upload before its bytes are persisted.
type Candidate struct {
	Name        string
	Size        int64
	ContentType string
}

// Validator applies the acceptance rules to candidates.
type Validator struct {
	maxBytes int64
}

// NewValidator constructs a validator. A maxBytes of zero disables the size cap.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes < 0 {
		maxBytes = 0
	}
	return &Validator{maxBytes: maxBytes}
}

// MaxBytes returns the size cap, or 0 when uncapped.
func (v *Validator) MaxBytes() int64 {
	if v == nil {
		return 0
	}
	return v.maxBytes
}

// Validate checks the candidate and returns the category implied by its name.
func (v *Validator) Validate(c Candidate) (Category, error) {
	name := strings.TrimSpace(c.Name)
	if c.Size <= 0 {
		return "", fmt.Errorf("%w: %q has no content", ErrEmptyAsset, name)
	}
	if v != nil && v.maxBytes > 0 && c.Size > v.maxBytes {
		return "", fmt.Errorf("%w: %q is %d bytes, limit is %d", ErrAssetTooLarge, name, c.Size, v.maxBytes)
	}
	category, ok := CategoryForName(name)
	if !ok {
		ext := Extension(name)
		if ext == "" {
			return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedExtension, name)
		}
		return "", fmt.Errorf("%w: %q (.%s is not one of jpg, jpeg, png, gif, mp3, wav, m4a, mp4, mov)", ErrUnsupportedExtension, name, ext)
	}
	primary := PrimaryType(c.ContentType)
	if primary != string(category) {
		declared := strings.TrimSpace(c.ContentType)
		if declared == "" {
			declared = "<none>"
		}
		return "", fmt.Errorf("%w: %q is named as %s but declared %s", ErrContentTypeMismatch, name, category, declared)
	}
	return category, nil
}

// IsRejection reports whether err came from one of the validator rules.
func IsRejection(err error) bool {
	return errors.Is(err, ErrEmptyAsset) ||
		errors.Is(err, ErrUnsupportedExtension) ||
		errors.Is(err, ErrContentTypeMismatch) ||
		errors.Is(err, ErrAssetTooLarge)
}
