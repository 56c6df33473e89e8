package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reimbursement-service/internal/blob"
	apperrors "github.com/spec-kit/reimbursement-service/pkg/util"
)

// FilesHandler serves receipt downloads guarded by presigned URLs.
type FilesHandler struct {
	blobs     blob.Store
	presigner *blob.Presigner
}

// NewFilesHandler constructs handler.
func NewFilesHandler(blobs blob.Store, presigner *blob.Presigner) *FilesHandler {
	return &FilesHandler{blobs: blobs, presigner: presigner}
}

// Download GET /files/+. The signature and expiry query parameters must
// match the requested object key.
func (h *FilesHandler) Download(c *fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("+"))
	if err != nil || key == "" {
		return apperrors.NewValidationError("invalid file key", nil)
	}

	if err := h.presigner.Verify(key, c.Query("expires"), c.Query("signature")); err != nil {
		return apperrors.NewForbidden(err.Error())
	}

	obj, err := h.blobs.Get(c.UserContext(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return apperrors.NewNotFound("file not found", nil)
		}
		return apperrors.NewStorageError("failed to read file", err)
	}

	if obj.ContentType != "" {
		c.Set(fiber.HeaderContentType, obj.ContentType)
	}
	return c.Status(http.StatusOK).Send(obj.Data)
}
