package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/index"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.PathValue("owner"))
	if owner == "" {
		owner = strings.TrimSpace(r.URL.Query().Get("owner"))
	}
	if owner == "" {
		s.writeServiceError(w, r, badRequestCode(errors.New("owner is required"), api.ErrCodeMissingRequired))
		return
	}
	owner, err := models.NormalizeAddress(owner)
	if err != nil {
		s.writeServiceError(w, r, badRequestCode(errors.New("invalid owner address"), api.ErrCodeInvalidAddress))
		return
	}
	if s.deps.Files == nil || !s.deps.Files.Configured() {
		s.writeServiceError(w, r, index.ErrIndexUnconfigured)
		return
	}

	files, err := s.deps.Files.ListByOwner(r.Context(), owner)
	if err != nil {
		if !errors.Is(err, index.ErrIndexUnconfigured) {
			err = makeAPIError(http.StatusInternalServerError, "unavailable", api.ErrCodeIndexFailure, err)
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileListResponse{
		Success: true,
		Owner:   owner,
		Count:   len(files),
		Files:   files,
	})
}
