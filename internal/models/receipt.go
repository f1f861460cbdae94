package models

// Receipt is an ownership record minted on the ledger for a stored blob.
type Receipt struct {
	TxID      string `json:"txId"`
	BlobID    string `json:"blobId"`
	MediaType string `json:"mediaType"`
	Owner     string `json:"owner"`
}
