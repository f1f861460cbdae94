package models

import "time"

// FileRecord is the denormalized index entry served by owner listings.
type FileRecord struct {
	Owner         string     `json:"owner"`
	FileName      string     `json:"fileName"`
	FileSizeBytes int64      `json:"fileSizeBytes"`
	Algorithm     string     `json:"algorithm"`
	BlobID        string     `json:"blobId"`
	TxID          string     `json:"txId"`
	Status        FileStatus `json:"status"`
	UploadedAt    time.Time  `json:"uploadedAt"`
	MimeType      string     `json:"mimeType"`
}
