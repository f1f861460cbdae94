package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Upload pipeline.
	mux.HandleFunc("POST /upload", s.handleUpload)

	// Cost quotes.
	mux.HandleFunc("GET /storage-cost", s.handleStorageCost)

	// Owner listings.
	mux.HandleFunc("GET /files", s.handleListFiles)
	mux.HandleFunc("GET /owners/{owner}/files", s.handleListFiles)

	// Decoded blob content.
	mux.HandleFunc("GET /blobs/{blobId}", s.handleGetBlob)

	return mux
}
