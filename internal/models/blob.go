package models

// BlobHandle identifies one payload accepted by the blob store.
type BlobHandle struct {
	BlobID    string `json:"blobId"`
	SizeBytes int64  `json:"sizeBytes"`
	Epochs    int    `json:"epochs"`
	Deletable bool   `json:"deletable"`
}
