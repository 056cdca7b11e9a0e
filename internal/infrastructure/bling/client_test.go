package bling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		APIBaseURL:     server.URL,
		RequestTimeout: 2 * time.Second,
		MaxPageSize:    100,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestFetchPageMapsProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/produtos", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("pagina"))
		assert.Equal(t, "2", r.URL.Query().Get("limite"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":123,"nome":"Widget","codigo":"W-1","preco":49.9,"precoCusto":30.0},
			{"id":124,"nome":"Gadget","codigo":"G-1","preco":10.0}
		]}`))
	})

	page, err := client.FetchPage(context.Background(), "token-1", syncdomain.JobTypeProducts, 1, 2)
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	first := page.Items[0]
	assert.Equal(t, "123", first.RemoteID)
	assert.Equal(t, "W-1", first.SKU)
	assert.True(t, first.Priced)
	assert.Equal(t, "49.9", first.Price.String())
	require.NotNil(t, first.CostPrice)
	assert.Equal(t, "30", first.CostPrice.String())
	assert.Nil(t, page.Items[1].CostPrice)

	// A full page implies another page may exist
	assert.True(t, page.HasMore)
	assert.Equal(t, 2, page.NextPage)
}

func TestFetchPagePartialPageEndsPagination(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":1,"nome":"Only","codigo":"O-1","preco":5.0}]}`))
	})

	page, err := client.FetchPage(context.Background(), "t", syncdomain.JobTypeProducts, 1, 50)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
}

func TestFetchPageSurfacesMalformedEntities(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"nome":"No ID","preco":5.0},
			{"id":7,"nome":"OK","codigo":"K-1","preco":-1.0},
			{"id":8,"nome":"Valid","codigo":"V-1","preco":12.5}
		]}`))
	})

	page, err := client.FetchPage(context.Background(), "t", syncdomain.JobTypeProducts, 1, 50)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "8", page.Items[0].RemoteID)

	// The unmappable entities ride along so the orchestrator can log them
	require.Len(t, page.Malformed, 2)
	assert.Equal(t, "7", page.Malformed[1].RemoteID)
	assert.Equal(t, "K-1", page.Malformed[1].SKU)
	assert.Contains(t, page.Malformed[1].Reason, "negative price")
}

func TestFetchPageRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchPage(context.Background(), "t", syncdomain.JobTypeProducts, 1, 50)
	assert.ErrorIs(t, err, syncdomain.ErrERPRateLimited)
}

func TestFetchPageServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchPage(context.Background(), "t", syncdomain.JobTypeProducts, 1, 50)
	assert.ErrorIs(t, err, syncdomain.ErrERPUnavailable)
}

func TestFetchPageMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.FetchPage(context.Background(), "t", syncdomain.JobTypeProducts, 1, 50)
	assert.ErrorIs(t, err, syncdomain.ErrERPInvalidResponse)
}

func TestFetchPageUsesResourcePerJobType(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := client.FetchPage(context.Background(), "t", syncdomain.JobTypeOrders, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, "/pedidos/vendas", gotPath)
}

func TestPushCountsRejections(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"data":[
			{"id":1,"codigo":"A"},
			{"id":2,"codigo":"B","erro":"codigo duplicado"}
		]}`))
	})

	result, err := client.Push(context.Background(), "t", syncdomain.JobTypeProducts, []syncdomain.LocalEntity{
		{RemoteID: "1", SKU: "A", Name: "First"},
		{RemoteID: "2", SKU: "B", Name: "Second"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "2", result.Rejected[0].RemoteID)
	assert.Equal(t, "codigo duplicado", result.Rejected[0].Reason)
}
