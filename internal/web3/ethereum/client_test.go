package ethereum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func newFakeNode(t *testing.T, chainIDCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	var block atomic.Int64
	block.Store(0x10)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		var result string
		switch req.Method {
		case "eth_chainId":
			chainIDCalls.Add(1)
			result = "0x539"
		case "eth_blockNumber":
			result = "0x" + strconv.FormatInt(block.Add(1), 16)
		default:
			t.Errorf("unexpected method %s", req.Method)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
}

func TestFetchChainSnapshotOverRPC(t *testing.T) {
	var calls atomic.Int32
	node := newFakeNode(t, &calls)
	defer node.Close()

	ctx := context.Background()
	client, err := NewClient(ctx, Config{Name: "devnet", RPCURL: node.URL, Timeout: time.Second, Notes: "fake"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	first, err := client.FetchChainSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if first.ChainID != "0x539" || first.BlockNumber != "0x11" || first.Notes != "fake" {
		t.Fatalf("unexpected snapshot: %+v", first)
	}
	second, err := client.FetchChainSnapshot(ctx)
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if second.BlockNumber != "0x12" {
		t.Fatalf("block number did not advance: %+v", second)
	}
	if calls.Load() != 1 {
		t.Fatalf("chain id should be cached, fetched %d times", calls.Load())
	}
}

func TestClosedClientErrors(t *testing.T) {
	var calls atomic.Int32
	node := newFakeNode(t, &calls)
	defer node.Close()

	client, err := NewClient(context.Background(), Config{RPCURL: node.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.Close()
	if _, err := client.FetchChainSnapshot(context.Background()); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty rpc url")
	}
}
