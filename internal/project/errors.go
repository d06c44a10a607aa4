package project

import (
	"fmt"

	"reelforge/internal/services"
)

var (
	ErrUnknownProject    = fmt.Errorf("%w: unknown project", services.ErrNotFound)
	ErrValidationFailed  = fmt.Errorf("%w: asset rejected", services.ErrValidation)
	ErrNotReady          = fmt.Errorf("%w: project is missing assets", services.ErrConflict)
	ErrAlreadyAssembling = fmt.Errorf("%w: project is assembling", services.ErrConflict)
	ErrCompleted         = fmt.Errorf("%w: project already completed", services.ErrConflict)
)
