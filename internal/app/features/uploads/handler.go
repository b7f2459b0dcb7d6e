// internal/app/features/uploads/handler.go
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/features/shared/apiutil"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the file itself
const formSlack = 1 << 20

// Handler stores uploads under the caller's temporary prefix and serves
// published attachments by token.
type Handler struct {
	Files  attachments.Store
	ErrLog *errorsfeature.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(files attachments.Store, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Files:  files,
		ErrLog: errLog,
		Log:    logger,
	}
}

type uploadResponse struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Upload handles POST /api/uploads (multipart: post_type, file). The
// returned path is what the client names in a later submission.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, attachments.MaxFileSize+formSlack)
	if err := r.ParseMultipartForm(formSlack); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.ErrLog.Write(w, r, apperr.Newf(apperr.FailedPrecondition,
				"Files must be %d MB or less.", attachments.MaxFileSize>>20))
			return
		}
		h.ErrLog.BadRequest(w, "Malformed upload.")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	prefix, err := attachments.TempPrefix(r.FormValue("post_type"), caller.UserID)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Wrap(apperr.InvalidArgument, err, "This post type does not take attachments."))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.ErrLog.BadRequest(w, "Missing file.")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !attachments.AllowedType(contentType) {
		h.ErrLog.Write(w, r, apperr.Wrap(apperr.FailedPrecondition, attachments.ErrBadType,
			"Only PDF and Word documents may be attached."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	name, err := attachments.UniqueName(ctx, h.Files, prefix, header.Filename)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	obj, err := h.Files.Put(ctx, prefix+name, contentType, file)
	if errors.Is(err, attachments.ErrEmptyUpload) {
		h.ErrLog.BadRequest(w, "The file is empty.")
		return
	}
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	h.Log.Info("upload stored",
		zap.String("user_id", caller.UserID.Hex()),
		zap.String("path", obj.Path),
		zap.Int64("size", obj.Size))
	errorsfeature.JSON(w, http.StatusCreated, uploadResponse{
		Name:        name,
		Path:        obj.Path,
		ContentType: obj.ContentType,
		Size:        obj.Size,
	})
}

// Download handles GET /files/{token}.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	rc, obj, err := h.Files.OpenByToken(ctx, chi.URLParam(r, "token"))
	if errors.Is(err, attachments.ErrNotFound) {
		h.ErrLog.Write(w, r, apperr.New(apperr.NotFound, "File not found."))
		return
	}
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(obj.Path)))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(obj.Size))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.Log.Warn("download interrupted", zap.String("path", obj.Path), zap.Error(err))
	}
}
