package server

import (
	"net/http"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
)

const bannerMessage = "Mothrbox Walrus API Active"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.InfoResponse{Message: bannerMessage})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:    "ok",
		BlobStore: s.deps.BlobStoreName,
		Index:     s.deps.Files != nil && s.deps.Files.Configured(),
	})
}
