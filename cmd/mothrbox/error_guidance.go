package main

import (
	"context"
	"errors"
	"net"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/blobstore"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/ledger"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized", "forbidden":
			lines = append(lines, "hint: verify MOTHRBOX_API_TOKEN matches the server.")
		}
		if !apiErr.FromServer() {
			lines = append(lines, "hint: verify MOTHRBOX_API_URL points to a mothrbox server.")
		}
		switch apiErr.Stage() {
		case api.StageStore:
			lines = append(lines, "hint: the server could not reach Walrus; check its publisher and aggregator settings.")
		case api.StageMint:
			lines = append(lines, "hint: the blob was stored but the receipt was not minted; check the server's Sui signer and gas balance before uploading again.")
		case api.StageIndex:
			lines = append(lines, "hint: the file index is unavailable; check the server's index settings.")
		}
		if apiErr.Status >= 500 && apiErr.Stage() == api.StageNone {
			lines = append(lines, "hint: the server failed; check server logs for details.")
		}
		if apiErr.Retryable() {
			lines = append(lines, "hint: this failure is transient; retry shortly.")
		}
		return uniqueLines(lines)
	}

	switch {
	case errors.Is(err, ledger.ErrSignerMisconfigured):
		lines = append(lines, "hint: set SUI_SECRET_KEY to a suiprivkey1... or base64 ed25519 key.")
		return uniqueLines(lines)
	case errors.Is(err, blobstore.ErrStoreUnavailable):
		lines = append(lines, "hint: check WALRUS_PUBLISHER_URL and WALRUS_AGGREGATOR_URL, or use blob_store.backend = \"local\".")
		return uniqueLines(lines)
	case errors.Is(err, blobstore.ErrBlobNotFound):
		lines = append(lines, "hint: the blob id is unknown to the aggregator or has expired.")
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase MOTHRBOX_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a mothrbox server is running at MOTHRBOX_API_URL.",
			"hint: start a local server with: mothrbox srv",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
