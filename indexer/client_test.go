package indexer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTx(id string, round uint64, args ...[]byte) map[string]any {
	encoded := make([]string, len(args))
	for i, a := range args {
		encoded[i] = base64.StdEncoding.EncodeToString(a)
	}
	return map[string]any{
		"id":              id,
		"sender":          "ALICE",
		"confirmed-round": round,
		"round-time":      1_700_000_000 + round,
		"tx-type":         "appl",
		"application-transaction": map[string]any{
			"application-id":   1001,
			"application-args": encoded,
			"on-completion":    "noop",
		},
	}
}

func TestClient_Pagination(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/transactions", r.URL.Path)
		assert.Equal(t, "1001", r.URL.Query().Get("application-id"))
		requests = append(requests, r.URL.Query().Get("next"))

		var body map[string]any
		switch r.URL.Query().Get("next") {
		case "":
			body = map[string]any{
				"current-round": 20,
				"next-token":    "page2",
				"transactions":  []any{testTx("TX1", 10, []byte{0x11, 0xe0, 0x29, 0xfd})},
			}
		case "page2":
			body = map[string]any{
				"current-round": 20,
				"next-token":    "page3",
				"transactions":  []any{},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	page, err := c.SearchApplicationTransactions(context.Background(), 1001, 100, "")
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	tx := page.Transactions[0]
	assert.Equal(t, "TX1", tx.ID)
	assert.Equal(t, interfaces.Address("ALICE"), tx.Sender)
	assert.Equal(t, uint64(10), tx.Round)
	assert.Equal(t, time.Unix(1_700_000_010, 0).UTC(), tx.Timestamp)
	assert.Equal(t, [][]byte{{0x11, 0xe0, 0x29, 0xfd}}, tx.Args)
	assert.Equal(t, "page2", page.NextToken)

	page, err = c.SearchApplicationTransactions(context.Background(), 1001, 100, page.NextToken)
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)
	assert.Empty(t, page.NextToken)
	assert.Equal(t, []string{"", "page2"}, requests)
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"indexer is down"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = c.SearchApplicationTransactions(context.Background(), 1001, 100, "")
	assert.Error(t, err)
}
