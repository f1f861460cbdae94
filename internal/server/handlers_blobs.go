package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
)

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	blobID := strings.TrimSpace(r.PathValue("blobId"))
	if blobID == "" || len(blobID) > 256 {
		s.writeServiceError(w, r, badRequestCode(errors.New("invalid blob id"), api.ErrCodeInvalidBlobID))
		return
	}

	annotate(r.Context(), "blob_id", blobID)

	data, err := s.deps.Blobs.Download(r.Context(), blobID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log().Debug("write blob response", "blob_id", blobID, "error", err)
	}
}
