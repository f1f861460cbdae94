package api

import "github.com/georgegoldman/mothrbox-walrus-layer/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse is served at the API root.
type InfoResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports liveness and which optional components are wired.
type HealthResponse struct {
	Status    string `json:"status"`
	BlobStore string `json:"blobStore,omitempty"`
	Index     bool   `json:"index"`
}

// UploadParams are the metadata fields sent with an upload.
type UploadParams struct {
	Owner     string
	FileName  string
	Algorithm string
	MediaType string
	Epochs    int
}

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	Success   bool   `json:"success"`
	BlobID    string `json:"blobId"`
	TxID      string `json:"txId"`
	Message   string `json:"message"`
	SizeBytes int64  `json:"sizeBytes"`
	Epochs    int    `json:"epochs"`
	Indexed   bool   `json:"indexed"`
}

// StorageCostResponse is a storage price quote.
type StorageCostResponse struct {
	FileSizeBytes  int64   `json:"fileSizeBytes"`
	Epochs         int     `json:"epochs"`
	TotalCost      uint64  `json:"totalCost"`
	TotalCostInSui float64 `json:"totalCostInSui"`
	TotalCostInUsd float64 `json:"totalCostInUsd"`
	FiatRate       float64 `json:"fiatRate,omitempty"`
}

// StorageCostFromQuote converts a quote for the wire.
func StorageCostFromQuote(q models.CostQuote) StorageCostResponse {
	return StorageCostResponse{
		FileSizeBytes:  q.SizeBytes,
		Epochs:         q.Epochs,
		TotalCost:      q.NativeUnitsCost,
		TotalCostInSui: q.CostInSui,
		TotalCostInUsd: q.CostInFiat,
		FiatRate:       q.FiatRate,
	}
}

// FileListResponse lists an owner's files, newest first.
type FileListResponse struct {
	Success bool                `json:"success"`
	Owner   string              `json:"owner"`
	Count   int                 `json:"count"`
	Files   []models.FileRecord `json:"files"`
}
