package project

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"reelforge/internal/asset"
	"reelforge/internal/fileutil"
	"reelforge/internal/logging"
)

// Upload is one incoming asset. A negative Size means the length is not
// known in advance.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AcceptAsset validates an upload, persists its bytes in the project's
// scratch directory, and maps the name to the stored file. Re-uploading a
// name replaces the previous file.
func (r *Registry) AcceptAsset(ctx context.Context, id string, up Upload) (Asset, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Asset{}, err
	}
	name := strings.TrimSpace(up.Name)
	if up.Body == nil {
		return Asset{}, fmt.Errorf("%w: %q has no body", ErrValidationFailed, name)
	}

	e.mu.Lock()
	if err := e.acceptingUploads(); err != nil {
		e.mu.Unlock()
		return Asset{}, err
	}
	role, required := e.req.Role(name)
	dir := e.dir
	e.mu.Unlock()
	if !required {
		return Asset{}, fmt.Errorf("%w: %q is not referenced by the descriptor", ErrValidationFailed, name)
	}

	body := bufio.NewReaderSize(up.Body, asset.SniffLength)
	contentType := up.ContentType
	if r.sniff {
		head, _ := body.Peek(asset.SniffLength)
		contentType = asset.ResolveContentType(up.ContentType, head)
	}

	// Declared sizes are validated up front; unknown sizes after the write.
	limit := r.validator.MaxBytes()
	if up.Size >= 0 {
		if _, err := r.validator.Validate(asset.Candidate{Name: name, Size: up.Size, ContentType: contentType}); err != nil {
			return Asset{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
		limit = up.Size
	}

	stored := filepath.Join(dir, uuid.NewString()+"."+asset.Extension(name))
	written, err := fileutil.WriteStream(stored, body, limit)
	if err != nil {
		if errors.Is(err, fileutil.ErrLimitExceeded) {
			if up.Size >= 0 {
				return Asset{}, fmt.Errorf("%w: %q body is longer than the declared %d bytes", ErrValidationFailed, name, up.Size)
			}
			return Asset{}, fmt.Errorf("%w: %w: %q exceeds %d bytes", ErrValidationFailed, asset.ErrAssetTooLarge, name, limit)
		}
		return Asset{}, fmt.Errorf("store asset %q: %w", name, err)
	}

	logger := r.log(ctx, id).With(logging.String(logging.FieldAsset, name))
	reject := func(err error) (Asset, error) {
		r.removeFile(logger, stored)
		return Asset{}, err
	}
	if up.Size >= 0 && written.Size != up.Size {
		return reject(fmt.Errorf("%w: %q declared %d bytes but sent %d", ErrValidationFailed, name, up.Size, written.Size))
	}
	category, err := r.validator.Validate(asset.Candidate{Name: name, Size: written.Size, ContentType: contentType})
	if err != nil {
		return reject(fmt.Errorf("%w: %w", ErrValidationFailed, err))
	}
	if !role.Accepts(category) {
		return reject(fmt.Errorf("%w: %q is %s but is used as %s", ErrValidationFailed, name, category, role))
	}

	accepted := Asset{
		Name:        name,
		Path:        stored,
		Size:        written.Size,
		ContentType: contentType,
		Category:    category,
		SHA256:      written.SHA256,
		UploadedAt:  r.now(),
	}

	e.mu.Lock()
	if err := e.acceptingUploads(); err != nil {
		e.mu.Unlock()
		return reject(err)
	}
	previous, replaced := e.assets[name]
	e.assets[name] = accepted
	e.updatedAt = accepted.UploadedAt
	st := e.status()
	e.mu.Unlock()

	if replaced {
		logger.Info("asset replaced", logging.String("previous_sha256", previous.SHA256))
		r.removeFile(logger, previous.Path)
	}
	logger.Info("asset accepted",
		logging.String("category", string(category)),
		logging.Int64("size_bytes", written.Size),
		logging.String("content_type", contentType),
		logging.Int("uploaded", st.Uploaded),
		logging.Int("required", st.Required),
	)
	return accepted, nil
}

// acceptingUploads must be called with e.mu held.
func (e *entry) acceptingUploads() error {
	switch {
	case e.evicted:
		return fmt.Errorf("%w: %q", ErrUnknownProject, e.id)
	case e.state == StateAssembling:
		return fmt.Errorf("%w: uploads are closed while %q renders", ErrAlreadyAssembling, e.id)
	case e.state == StateCompleted:
		return fmt.Errorf("%w: %q no longer accepts uploads", ErrCompleted, e.id)
	}
	return nil
}
