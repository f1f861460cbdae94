package server

import (
	"errors"
	"net/http"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
)

func (s *Server) handleStorageCost(w http.ResponseWriter, r *http.Request) {
	size, ok, err := queryInt64(r, "fileSize")
	if err == nil && !ok {
		size, ok, err = queryInt64(r, "fileSizeBytes")
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		s.writeServiceError(w, r, badRequestCode(errors.New("fileSize is required"), api.ErrCodeMissingRequired))
		return
	}
	epochs, err := queryIntDefault(r, "epochs", 0)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	quote, err := s.deps.Costs.Estimate(r.Context(), size, epochs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StorageCostFromQuote(quote))
}
