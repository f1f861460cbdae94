package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testPackage = "0x2a"
	testOwner   = "0xabc"
)

type fakeFullnode struct {
	mu          sync.Mutex
	calls       map[string]int
	moveCallArg [][]json.RawMessage
	digests     int

	moveCallErr  *RPCError
	inlineStatus string
	failReason   string
	pendingPolls int
	neverFinal   bool
	submitDelay  time.Duration
	pollDelay    time.Duration

	inFlight        atomic.Int32
	maxInFlight     atomic.Int32
	pollsInFlight   atomic.Int32
	maxPollInFlight atomic.Int32
}

// enter bumps an in-flight counter and records its high-water mark.
func enter(inFlight, peak *atomic.Int32) {
	n := inFlight.Add(1)
	for {
		cur := peak.Load()
		if n <= cur || peak.CompareAndSwap(cur, n) {
			return
		}
	}
}

func newFakeFullnode() *fakeFullnode {
	return &fakeFullnode{calls: map[string]int{}, inlineStatus: statusSuccess}
}

func (f *fakeFullnode) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeFullnode) moveCallParams(i int) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.moveCallArg) {
		return nil
	}
	return f.moveCallArg[i]
}

func (f *fakeFullnode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls[req.Method]++
	f.mu.Unlock()

	reply := func(result any, rpcErr *RPCError) {
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result, "error": rpcErr})
	}

	switch req.Method {
	case "unsafe_moveCall":
		f.mu.Lock()
		f.moveCallArg = append(f.moveCallArg, req.Params)
		f.mu.Unlock()
		if f.moveCallErr != nil {
			reply(nil, f.moveCallErr)
			return
		}
		reply(map[string]string{"txBytes": base64.StdEncoding.EncodeToString([]byte("tx"))}, nil)
	case "sui_executeTransactionBlock":
		enter(&f.inFlight, &f.maxInFlight)
		time.Sleep(f.submitDelay)
		f.inFlight.Add(-1)

		f.mu.Lock()
		f.digests++
		digest := "digest-" + string(rune('a'+f.digests))
		f.mu.Unlock()
		if f.inlineStatus == "" {
			reply(map[string]any{"digest": digest}, nil)
			return
		}
		reply(map[string]any{
			"digest":  digest,
			"effects": map[string]any{"status": map[string]string{"status": f.inlineStatus, "error": f.failReason}},
		}, nil)
	case "sui_getTransactionBlock":
		enter(&f.pollsInFlight, &f.maxPollInFlight)
		time.Sleep(f.pollDelay)
		f.pollsInFlight.Add(-1)

		f.mu.Lock()
		pending := f.pendingPolls > 0 || f.neverFinal
		if f.pendingPolls > 0 {
			f.pendingPolls--
		}
		f.mu.Unlock()
		if pending {
			reply(nil, &RPCError{Code: -32602, Message: "Could not find the referenced transaction"})
			return
		}
		reply(map[string]any{
			"digest":  "polled",
			"effects": map[string]any{"status": map[string]string{"status": statusSuccess}},
		}, nil)
	default:
		reply(nil, &RPCError{Code: -32601, Message: "method not found"})
	}
}

func newTestMinter(t *testing.T, fake *fakeFullnode) *Minter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	signer, err := NewSigner(testSeed())
	require.NoError(t, err)
	m, err := NewMinter(Config{
		RPCURL:       srv.URL,
		PackageID:    testPackage,
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  200 * time.Millisecond,
	}, signer)
	require.NoError(t, err)
	return m
}

func TestMintInlineEffects(t *testing.T) {
	fake := newFakeFullnode()
	m := newTestMinter(t, fake)

	receipt, err := m.Mint(context.Background(), "blob-1", "", testOwner)
	require.NoError(t, err)
	require.Equal(t, "blob-1", receipt.BlobID)
	require.Equal(t, testOwner, receipt.Owner)
	require.Equal(t, "application/octet-stream", receipt.MediaType)
	require.NotEmpty(t, receipt.TxID)
	require.Zero(t, fake.count("sui_getTransactionBlock"))

	require.Equal(t, 1, fake.count("unsafe_moveCall"))
	params := fake.moveCallParams(0)
	require.Len(t, params, 8)
	var sender, pkg, module, function string
	require.NoError(t, json.Unmarshal(params[0], &sender))
	require.NoError(t, json.Unmarshal(params[1], &pkg))
	require.NoError(t, json.Unmarshal(params[2], &module))
	require.NoError(t, json.Unmarshal(params[3], &function))
	require.Equal(t, m.Signer().Address(), sender)
	require.Equal(t, testPackage, pkg)
	require.Equal(t, DefaultModule, module)
	require.Equal(t, DefaultFunction, function)

	var args []string
	require.NoError(t, json.Unmarshal(params[5], &args))
	require.Equal(t, []string{"blob-1", "application/octet-stream", testOwner}, args)
}

func TestMintPollsForFinality(t *testing.T) {
	fake := newFakeFullnode()
	fake.inlineStatus = ""
	fake.pendingPolls = 2
	m := newTestMinter(t, fake)

	receipt, err := m.Mint(context.Background(), "blob-2", "text/plain", testOwner)
	require.NoError(t, err)
	require.NotEmpty(t, receipt.TxID)
	require.Equal(t, 3, fake.count("sui_getTransactionBlock"))
}

func TestMintFailureStatusIsRejected(t *testing.T) {
	fake := newFakeFullnode()
	fake.inlineStatus = statusFailure
	fake.failReason = "MoveAbort in receipt::mint_and_transfer"
	m := newTestMinter(t, fake)

	_, err := m.Mint(context.Background(), "blob-3", "", testOwner)
	var rejected *MintRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Contains(t, rejected.Reason, "MoveAbort")
}

func TestMintBuildRejectionIsRejected(t *testing.T) {
	fake := newFakeFullnode()
	fake.moveCallErr = &RPCError{Code: -32000, Message: "package object does not exist"}
	m := newTestMinter(t, fake)

	_, err := m.Mint(context.Background(), "blob-4", "", testOwner)
	var rejected *MintRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, "package object does not exist", rejected.Reason)
	require.Zero(t, fake.count("sui_executeTransactionBlock"))
}

func TestMintPollTimeoutIsRejected(t *testing.T) {
	fake := newFakeFullnode()
	fake.inlineStatus = ""
	fake.neverFinal = true
	m := newTestMinter(t, fake)

	_, err := m.Mint(context.Background(), "blob-5", "", testOwner)
	var rejected *MintRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Contains(t, rejected.Reason, "finality")
}

func TestMintTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	signer, err := NewSigner(testSeed())
	require.NoError(t, err)
	m, err := NewMinter(Config{RPCURL: url, PackageID: testPackage}, signer)
	require.NoError(t, err)

	_, err = m.Mint(context.Background(), "blob-6", "", testOwner)
	require.ErrorIs(t, err, ErrLedgerUnavailable)
}

func TestMintValidatesInput(t *testing.T) {
	m := newTestMinter(t, newFakeFullnode())
	_, err := m.Mint(context.Background(), "", "", testOwner)
	require.Error(t, err)
	_, err = m.Mint(context.Background(), "blob", "", "not-an-address")
	require.Error(t, err)
}

func TestNewMinterRequiresSigner(t *testing.T) {
	_, err := NewMinter(Config{RPCURL: "http://localhost", PackageID: testPackage}, nil)
	require.True(t, errors.Is(err, ErrSignerMisconfigured))

	signer, err := NewSigner(testSeed())
	require.NoError(t, err)
	_, err = NewMinter(Config{RPCURL: "http://localhost", PackageID: "receipt"}, signer)
	require.Error(t, err)
}

func TestConcurrentMintsSerializeSubmission(t *testing.T) {
	fake := newFakeFullnode()
	fake.submitDelay = 10 * time.Millisecond
	m := newTestMinter(t, fake)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Mint(context.Background(), "blob-"+strings.Repeat("x", i+1), "", testOwner)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), fake.maxInFlight.Load())
	require.Equal(t, 8, fake.count("sui_executeTransactionBlock"))
}

func TestConcurrentMintsPollOutsideSubmission(t *testing.T) {
	fake := newFakeFullnode()
	fake.inlineStatus = ""
	fake.pollDelay = 50 * time.Millisecond
	m := newTestMinter(t, fake)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Mint(context.Background(), "blob-"+strings.Repeat("y", i+1), "", testOwner)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), fake.maxInFlight.Load())
	require.Greater(t, fake.maxPollInFlight.Load(), int32(1))
	require.Equal(t, 4, fake.count("sui_getTransactionBlock"))
}
