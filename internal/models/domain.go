package models

import (
	"fmt"
	"regexp"
	"strings"
)

// FileStatus describes how a stored payload was prepared by the client.
type FileStatus string

const (
	FileStatusEncrypted FileStatus = "encrypted"
	FileStatusStored    FileStatus = "stored"
)

const (
	// DefaultEpochs is the retention period used when a caller does not ask for one.
	DefaultEpochs = 3
	// MaxEpochs is how far ahead the store accepts storage to be paid for.
	MaxEpochs = 53

	DefaultMediaType = "application/octet-stream"

	// MistPerSui converts native ledger units into whole tokens.
	MistPerSui = 1_000_000_000
)

var validFileStatuses = map[FileStatus]struct{}{
	FileStatusEncrypted: {},
	FileStatusStored:    {},
}

const addressHexLen = 64

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// ParseFileStatus validates and normalizes a status value.
func ParseFileStatus(value string) (FileStatus, error) {
	normalized := FileStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := validFileStatuses[normalized]; !ok {
		return "", fmt.Errorf("invalid file status: %s", value)
	}
	return normalized, nil
}

// StatusForAlgorithm returns the status recorded for a payload tagged with algorithm.
func StatusForAlgorithm(algorithm string) FileStatus {
	if strings.TrimSpace(algorithm) != "" {
		return FileStatusEncrypted
	}
	return FileStatusStored
}

// IsValidAddress reports whether value looks like a ledger account address.
func IsValidAddress(value string) bool {
	return addressPattern.MatchString(strings.TrimSpace(value))
}

// NormalizeAddress returns the canonical form of an address: lowercase hex
// left-padded with zeros to 32 bytes, so 0x2 and 0x00..02 name one account.
func NormalizeAddress(value string) (string, error) {
	value = strings.TrimSpace(value)
	if !addressPattern.MatchString(value) {
		return "", fmt.Errorf("invalid address %q", value)
	}
	digits := strings.ToLower(value[2:])
	return "0x" + strings.Repeat("0", addressHexLen-len(digits)) + digits, nil
}
