package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type fakeWalrus struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	ids     map[string]string
	queries []string
	reply   func(blobID string) any
	status  int
	// patches overrides the listing for a blob id.
	patches map[string][]quiltPatch
	fetches int
}

func newFakeWalrus() *fakeWalrus {
	return &fakeWalrus{blobs: map[string][]byte{}, ids: map[string]string{}}
}

func (f *fakeWalrus) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /v1/quilts", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.RawQuery)
		status := f.status
		f.mu.Unlock()
		if status != 0 {
			http.Error(w, "nope", status)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for name, headers := range r.MultipartForm.File {
			file, err := headers[0].Open()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			data, _ := io.ReadAll(file)
			_ = file.Close()
			blobID := "blob-" + name
			f.mu.Lock()
			f.blobs[blobID] = data
			f.ids[blobID] = name
			reply := f.reply
			f.mu.Unlock()
			var body any = map[string]any{
				"blobStoreResult": map[string]any{
					"newlyCreated": map[string]any{"blobObject": map[string]any{"blobId": blobID, "size": len(data)}},
				},
			}
			if reply != nil {
				body = reply(blobID)
			}
			_ = json.NewEncoder(w).Encode(body)
			return
		}
		http.Error(w, "no file", http.StatusBadRequest)
	})
	mux.HandleFunc("GET /v1/quilts/{blobId}/patches", func(w http.ResponseWriter, r *http.Request) {
		blobID := r.PathValue("blobId")
		f.mu.Lock()
		defer f.mu.Unlock()
		if listing, ok := f.patches[blobID]; ok {
			_ = json.NewEncoder(w).Encode(listing)
			return
		}
		if _, ok := f.blobs[blobID]; !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]quiltPatch{{Identifier: f.ids[blobID], PatchID: "patch-" + blobID}})
	})
	mux.HandleFunc("GET /v1/blobs/by-quilt-patch-id/{patchId}", func(w http.ResponseWriter, r *http.Request) {
		blobID := strings.TrimPrefix(r.PathValue("patchId"), "patch-")
		f.mu.Lock()
		defer f.mu.Unlock()
		f.fetches++
		data, ok := f.blobs[blobID]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})
	return mux
}

func (f *fakeWalrus) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

func newTestWalrus(t *testing.T, fake *fakeWalrus) *WalrusClient {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	client, err := NewWalrusClient(WalrusConfig{PublisherURL: srv.URL, AggregatorURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("new walrus client: %v", err)
	}
	return client
}

func TestWalrusUploadDownloadRoundTrip(t *testing.T) {
	fake := newFakeWalrus()
	client := newTestWalrus(t, fake)

	handle, err := client.Upload(context.Background(), NewStreamPayload(strings.NewReader("payload"), -1), UploadOptions{Identifier: "doc.txt", Epochs: 5, Deletable: true})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if handle.BlobID != "blob-doc.txt" || handle.SizeBytes != 7 || handle.Epochs != 5 {
		t.Fatalf("unexpected handle: %#v", handle)
	}
	if got := fake.lastQuery(); got != "deletable=true&epochs=5" {
		t.Fatalf("unexpected query %q", got)
	}

	data, err := client.Download(context.Background(), handle.BlobID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !bytes.Equal(data, []byte("payload")) {
		t.Fatalf("unexpected data %q", data)
	}
}

func TestWalrusUploadPermanentAndDefaults(t *testing.T) {
	fake := newFakeWalrus()
	client := newTestWalrus(t, fake)

	handle, err := client.Upload(context.Background(), NewBufferPayload([]byte("x")), UploadOptions{})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if handle.BlobID != "blob-untitled" || handle.Epochs != 3 {
		t.Fatalf("unexpected handle: %#v", handle)
	}
	if got := fake.lastQuery(); got != "epochs=3&permanent=true" {
		t.Fatalf("unexpected query %q", got)
	}
}

func TestWalrusUploadResponseVariants(t *testing.T) {
	tests := []struct {
		name  string
		reply func(string) any
		want  string
		err   error
	}{
		{
			name: "already certified",
			reply: func(id string) any {
				return map[string]any{"blobStoreResult": map[string]any{"alreadyCertified": map[string]any{"blobId": id, "endEpoch": 9}}}
			},
			want: "blob-f",
		},
		{
			name: "top level variant",
			reply: func(id string) any {
				return map[string]any{"newlyCreated": map[string]any{"blobObject": map[string]any{"blobId": id}}}
			},
			want: "blob-f",
		},
		{
			name:  "flat",
			reply: func(id string) any { return map[string]any{"blobId": id} },
			want:  "blob-f",
		},
		{
			name:  "unrecognized",
			reply: func(string) any { return map[string]any{"ok": true} },
			err:   ErrMalformedStoreResponse,
		},
		{
			name:  "not json",
			reply: func(string) any { return "just a string" },
			err:   ErrMalformedStoreResponse,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFakeWalrus()
			fake.reply = tc.reply
			client := newTestWalrus(t, fake)
			handle, err := client.Upload(context.Background(), NewBufferPayload([]byte("d")), UploadOptions{Identifier: "f"})
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("upload: %v", err)
			}
			if handle.BlobID != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, handle.BlobID)
			}
		})
	}
}

func TestWalrusUploadStatusErrors(t *testing.T) {
	for status, want := range map[int]error{
		http.StatusBadRequest:         ErrStoreRejected,
		http.StatusServiceUnavailable: ErrStoreUnavailable,
	} {
		fake := newFakeWalrus()
		fake.status = status
		client := newTestWalrus(t, fake)
		_, err := client.Upload(context.Background(), NewBufferPayload([]byte("d")), UploadOptions{})
		if !errors.Is(err, want) {
			t.Fatalf("status %d: expected %v, got %v", status, want, err)
		}
	}
}

func TestWalrusUploadTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewWalrusClient(WalrusConfig{PublisherURL: url, AggregatorURL: url})
	if err != nil {
		t.Fatalf("new walrus client: %v", err)
	}
	if _, err := client.Upload(context.Background(), NewBufferPayload([]byte("d")), UploadOptions{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestWalrusDownloadNotFound(t *testing.T) {
	client := newTestWalrus(t, newFakeWalrus())
	if _, err := client.Download(context.Background(), "missing"); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestWalrusDownloadRequiresSingleFile(t *testing.T) {
	fake := newFakeWalrus()
	fake.patches = map[string][]quiltPatch{
		"quilt-empty": {},
		"quilt-two": {
			{Identifier: "a.bin", PatchID: "patch-a"},
			{Identifier: "b.bin", PatchID: "patch-b"},
		},
	}
	client := newTestWalrus(t, fake)

	if _, err := client.Download(context.Background(), "quilt-empty"); !errors.Is(err, ErrEmptyBlob) {
		t.Fatalf("expected ErrEmptyBlob, got %v", err)
	}
	if _, err := client.Download(context.Background(), "quilt-two"); !errors.Is(err, ErrMultipleFiles) {
		t.Fatalf("expected ErrMultipleFiles, got %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.fetches != 0 {
		t.Fatalf("expected no patch fetches, got %d", fake.fetches)
	}
}

func TestNewWalrusClientValidatesURLs(t *testing.T) {
	if _, err := NewWalrusClient(WalrusConfig{AggregatorURL: "http://x"}); err == nil {
		t.Fatalf("expected error for missing publisher")
	}
	if _, err := NewWalrusClient(WalrusConfig{PublisherURL: "ftp://x", AggregatorURL: "http://x"}); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestParseUploadResponsePrefersWrappedResult(t *testing.T) {
	body := []byte(`{"blobStoreResult":{"newlyCreated":{"blobObject":{"blobId":"wrapped"}}},"blobId":"flat"}`)
	got, err := parseUploadResponse(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != "wrapped" {
		t.Fatalf("expected wrapped, got %q", got)
	}
}
