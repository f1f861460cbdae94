package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/api"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/blobstore"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/index"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/pricing"
	"github.com/georgegoldman/mothrbox-walrus-layer/internal/upload"
)

const testOwner = "0x00000000000000000000000000000000000000000000000000000000000000a1"

type stubMinter struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *stubMinter) Mint(_ context.Context, blobID, mediaType, owner string) (models.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return models.Receipt{}, m.err
	}
	return models.Receipt{TxID: fmt.Sprintf("digest-%d", m.calls), BlobID: blobID, MediaType: mediaType, Owner: owner}, nil
}

func (m *stubMinter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type testEnv struct {
	srv    *Server
	store  *blobstore.LocalCAS
	minter *stubMinter
	index  *index.Index
}

func newTestEnv(t *testing.T, withIndex bool, opts Options) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := blobstore.NewLocalCAS(filepath.Join(dir, "blobs"), blobstore.DefaultPricing())
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	idxURL := ""
	if withIndex {
		idxURL = "sqlite:" + filepath.Join(dir, "index.db")
	}
	idx := index.New(idxURL, nil)
	t.Cleanup(func() { _ = idx.Close() })

	minter := &stubMinter{}
	orch := upload.New(store, minter, idx, upload.Options{Deletable: true})
	deps := Deps{
		Uploads:       orch,
		Costs:         pricing.NewEstimator(store, pricing.FixedRate(2)),
		Files:         idx,
		Blobs:         store,
		BlobStoreName: "local",
	}
	return &testEnv{
		srv:    New("127.0.0.1:0", deps, opts, nil),
		store:  store,
		minter: minter,
		index:  idx,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response %q: %v", w.Body.String(), err)
	}
	if resp.Success {
		t.Fatalf("error response reported success: %s", w.Body.String())
	}
	return resp
}
