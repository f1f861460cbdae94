package blobstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

type uploadKind int

const (
	uploadKindUnknown uploadKind = iota
	uploadKindNewlyCreated
	uploadKindAlreadyCertified
	uploadKindFlat
)

type rawBlobObject struct {
	BlobID string `json:"blobId"`
	Size   int64  `json:"size"`
}

type rawNewlyCreated struct {
	BlobObject rawBlobObject `json:"blobObject"`
}

type rawAlreadyCertified struct {
	BlobID   string `json:"blobId"`
	EndEpoch int64  `json:"endEpoch"`
}

type rawBlobStoreResult struct {
	NewlyCreated     *rawNewlyCreated     `json:"newlyCreated"`
	AlreadyCertified *rawAlreadyCertified `json:"alreadyCertified"`
}

// The publisher answers quilt uploads with blobStoreResult wrapping one of
// the variants; blob uploads return the variant at the top level. Some
// proxies reply with a flat blobId.
type rawUploadResponse struct {
	BlobStoreResult *rawBlobStoreResult `json:"blobStoreResult"`
	rawBlobStoreResult
	BlobID string `json:"blobId"`
}

func (r rawUploadResponse) classify() (uploadKind, string) {
	result := r.rawBlobStoreResult
	if r.BlobStoreResult != nil {
		result = *r.BlobStoreResult
	}
	switch {
	case result.NewlyCreated != nil && strings.TrimSpace(result.NewlyCreated.BlobObject.BlobID) != "":
		return uploadKindNewlyCreated, result.NewlyCreated.BlobObject.BlobID
	case result.AlreadyCertified != nil && strings.TrimSpace(result.AlreadyCertified.BlobID) != "":
		return uploadKindAlreadyCertified, result.AlreadyCertified.BlobID
	case strings.TrimSpace(r.BlobID) != "":
		return uploadKindFlat, r.BlobID
	default:
		return uploadKindUnknown, ""
	}
}

func parseUploadResponse(body []byte) (string, error) {
	var raw rawUploadResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedStoreResponse, err)
	}
	kind, blobID := raw.classify()
	switch kind {
	case uploadKindNewlyCreated, uploadKindAlreadyCertified, uploadKindFlat:
		return strings.TrimSpace(blobID), nil
	case uploadKindUnknown:
		return "", fmt.Errorf("%w: no blob id in response", ErrMalformedStoreResponse)
	default:
		return "", fmt.Errorf("%w: unexpected response kind %d", ErrMalformedStoreResponse, kind)
	}
}
