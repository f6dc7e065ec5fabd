package handlers

import (
	"io"
	"net/http"
	"path"
	"strconv"

	"go.uber.org/zap"

	"github.com/diewo77/labdesk/internal/services"
)

// FilesHandler serves stored uploads to users allowed to see the owning record.
type FilesHandler struct {
	Base
	requests *services.RequestService
}

func NewFilesHandler(base Base, requests *services.RequestService) *FilesHandler {
	return &FilesHandler{Base: base, requests: requests}
}

func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	info, body, err := h.requests.OpenFile(r.Context(), h.actor(r), key)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	defer body.Close()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Content-Disposition", "inline; filename=\""+path.Base(key)+"\"")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, body); err != nil {
		h.logger().Warn("file download interrupted", zap.String("key", key), zap.Error(err))
	}
}
