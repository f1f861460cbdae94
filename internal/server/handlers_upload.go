package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/blobstore"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/upload"
)

const successMessage = "File uploaded and receipt minted successfully"

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.uploadLimiter.Allow(requestClientIP(r), timeNow()) {
		err := makeAPIError(http.StatusTooManyRequests, "resource_exhausted", api.ErrCodeResourceExhausted,
			errors.New("too many upload requests"))
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return
	}
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}

	var (
		req upload.Request
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, err = s.multipartUpload(r)
	} else {
		req, err = streamedUpload(r, mediaType)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.deps.Uploads.Upload(r.Context(), req)
	if err != nil {
		var uerr *upload.Error
		if errors.As(err, &uerr) {
			annotate(r.Context(), "failure", uerr.Kind.String(), "aborted_in", uerr.State.String())
		}
		s.writeServiceError(w, r, bodyError(err))
		return
	}
	annotate(r.Context(),
		"owner", result.Receipt.Owner,
		"blob_id", result.Blob.BlobID,
		"tx_id", result.Receipt.TxID,
		"size_bytes", result.Blob.SizeBytes,
		"epochs", result.Blob.Epochs,
		"indexed", result.Index.OK(),
	)

	s.writeJSON(w, http.StatusOK, api.UploadResponse{
		Success:   true,
		BlobID:    result.Blob.BlobID,
		TxID:      result.Receipt.TxID,
		Message:   successMessage,
		SizeBytes: result.Blob.SizeBytes,
		Epochs:    result.Blob.Epochs,
		Indexed:   result.Index.OK(),
	})
}

// multipartUpload buffers the "file" part. A missing part leaves the payload
// nil so the orchestrator reports it.
func (s *Server) multipartUpload(r *http.Request) (upload.Request, error) {
	if err := r.ParseMultipartForm(s.opts.MaxMultipartMemory); err != nil {
		return upload.Request{}, bodyError(badRequestCode(fmt.Errorf("invalid multipart body: %w", err), api.ErrCodeInvalidMultipart))
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	epochs, err := parseEpochs(r.FormValue("epochs"))
	if err != nil {
		return upload.Request{}, err
	}
	req := upload.Request{
		Owner:     firstNonEmpty(r.FormValue("ownerAddress"), r.FormValue("userAddress")),
		FileName:  strings.TrimSpace(r.FormValue("fileName")),
		Algorithm: strings.TrimSpace(r.FormValue("algorithm")),
		Epochs:    epochs,
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return upload.Request{}, badRequestCode(fmt.Errorf("read file part: %w", err), api.ErrCodeInvalidMultipart)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload.Request{}, bodyError(fmt.Errorf("read file part: %w", err))
	}
	req.Payload = blobstore.NewBufferPayload(data)
	if req.FileName == "" {
		req.FileName = header.Filename
	}
	req.MediaType = header.Header.Get("Content-Type")
	return req, nil
}

// streamedUpload forwards the request body without reading it. Metadata
// comes from the query string or X-* headers.
func streamedUpload(r *http.Request, mediaType string) (upload.Request, error) {
	q := r.URL.Query()
	epochs, err := parseEpochs(firstNonEmpty(q.Get("epochs"), r.Header.Get(api.HeaderEpochs)))
	if err != nil {
		return upload.Request{}, err
	}
	return upload.Request{
		Payload:   blobstore.NewStreamPayload(r.Body, r.ContentLength),
		Owner:     firstNonEmpty(q.Get("ownerAddress"), q.Get("userAddress"), r.Header.Get(api.HeaderOwnerAddress)),
		FileName:  firstNonEmpty(q.Get("fileName"), r.Header.Get(api.HeaderFileName)),
		Algorithm: firstNonEmpty(q.Get("algorithm"), r.Header.Get(api.HeaderAlgorithm)),
		MediaType: mediaType,
		Epochs:    epochs,
	}, nil
}

func parseEpochs(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	epochs, err := strconv.Atoi(value)
	if err != nil || epochs < 0 {
		return 0, badRequestCode(fmt.Errorf("invalid epochs %q", value), api.ErrCodeInvalidEpochs)
	}
	return epochs, nil
}

// bodyError turns an exceeded body limit into a 413 wherever it surfaces.
func bodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return makeAPIError(http.StatusRequestEntityTooLarge, "invalid_argument", api.ErrCodeRequestTooLarge,
			fmt.Errorf("request body exceeds %d bytes", maxBytesErr.Limit))
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
