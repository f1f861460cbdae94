package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/blobstore"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/index"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/pricing"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/upload"
)

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	message := err.Error()

	fields := []any{"status", status, "code", code, "error_code", numericCode, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		if id := requestIDFrom(r.Context()); id != "" {
			fields = append(fields, "request_id", id)
		}
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		if numericCode == api.ErrCodeInternal {
			message = "internal error"
		}
	case status >= 400 && shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: numericCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	err = classifyError(err)
	s.writeErrorReq(w, r, httpStatusFromError(err), err)
}

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, "not_found", code, err)
}

func unprocessable(err error, code int) error {
	return makeAPIError(http.StatusUnprocessableEntity, "failed_precondition", code, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", api.ErrCodeInternal, err)
}

func downstreamFailure(err error, code int) error {
	return makeAPIError(http.StatusInternalServerError, "unavailable", code, err)
}

// classifyError maps domain errors from the pipeline and its parts onto
// HTTP statuses. Errors already carrying a status pass through.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var existing apiError
	if errors.As(err, &existing) && existing.status != 0 {
		return existing
	}

	var uerr *upload.Error
	if errors.As(err, &uerr) {
		switch uerr.Kind {
		case upload.ValidationError:
			return badRequestCode(err, validationCode(err))
		case upload.UploadFailed:
			return downstreamFailure(fmt.Errorf("blob upload failed: %w", uerr.Err), api.ErrCodeStoreFailure)
		case upload.MintFailed:
			return downstreamFailure(fmt.Errorf("receipt mint failed: %w", uerr.Err), api.ErrCodeMintFailure)
		}
	}

	switch {
	case errors.Is(err, pricing.ErrInvalidSize),
		errors.Is(err, blobstore.ErrBlobTooLarge),
		errors.Is(err, blobstore.ErrCostOverflow):
		return badRequestCode(err, api.ErrCodeInvalidSize)
	case errors.Is(err, blobstore.ErrEpochsOutOfRange):
		return badRequestCode(err, api.ErrCodeInvalidEpochs)
	case errors.Is(err, blobstore.ErrBlobNotFound):
		return notFoundCode(err, api.ErrCodeBlobNotFound)
	case errors.Is(err, blobstore.ErrEmptyBlob):
		return unprocessable(err, api.ErrCodeEmptyBlob)
	case errors.Is(err, blobstore.ErrMultipleFiles):
		return unprocessable(err, api.ErrCodeMultipleFiles)
	case errors.Is(err, blobstore.ErrStoreUnavailable),
		errors.Is(err, blobstore.ErrStoreRejected),
		errors.Is(err, blobstore.ErrMalformedStoreResponse):
		return downstreamFailure(err, api.ErrCodeStoreFailure)
	case errors.Is(err, index.ErrIndexUnconfigured):
		return makeAPIError(http.StatusServiceUnavailable, "unavailable", api.ErrCodeIndexUnconfigured, err)
	}
	return internalError(err)
}

func validationCode(err error) int {
	switch {
	case errors.Is(err, upload.ErrEmptyPayload):
		return api.ErrCodeEmptyPayload
	case errors.Is(err, upload.ErrNoPayload), errors.Is(err, upload.ErrOwnerRequired):
		return api.ErrCodeMissingRequired
	case errors.Is(err, upload.ErrInvalidOwner):
		return api.ErrCodeInvalidAddress
	case errors.Is(err, upload.ErrInvalidEpochs):
		return api.ErrCodeInvalidEpochs
	default:
		return api.ErrCodeInvalidArgument
	}
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "invalid_argument"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func shouldWarnClientError(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func queryInt64(r *http.Request, key string) (int64, bool, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, true, badRequestCode(fmt.Errorf("invalid %s", key), api.ErrCodeInvalidQuery)
	}
	return parsed, true, nil
}

func queryIntDefault(r *http.Request, key string, def int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, badRequestCode(fmt.Errorf("invalid %s", key), api.ErrCodeInvalidQuery)
	}
	if parsed < 0 {
		return 0, badRequestCode(fmt.Errorf("%s must be >= 0", key), api.ErrCodeInvalidQuery)
	}
	return parsed, nil
}
