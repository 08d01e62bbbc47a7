package grandline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pricesync/internal/common"
)

type fakeAPI struct {
	prices        []map[string]any
	nomenclatures map[string]map[string]any
	nomRequests   atomic.Int32
	failures      atomic.Int32
	status        int
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	check := func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Query().Get("api_key") != "test-key" || r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		if f.failures.Load() > 0 {
			f.failures.Add(-1)
			w.WriteHeader(f.status)
			return false
		}
		return true
	}

	mux.HandleFunc("/prices/", func(w http.ResponseWriter, r *http.Request) {
		if !check(w, r) {
			return
		}
		assert.Equal(t, "b1", r.URL.Query().Get("branch_id"))
		assert.Equal(t, "a1", r.URL.Query().Get("agreement_id"))
		_ = json.NewEncoder(w).Encode(f.prices)
	})

	mux.HandleFunc("/nomenclatures/", func(w http.ResponseWriter, r *http.Request) {
		if !check(w, r) {
			return
		}
		f.nomRequests.Add(1)
		ids := strings.Split(r.URL.Query().Get("nomenclature_ids"), ",")
		assert.LessOrEqual(t, len(ids), NomenclatureBatchSize)

		out := []map[string]any{}
		for _, id := range ids {
			if n, ok := f.nomenclatures[id]; ok {
				out = append(out, n)
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		if !check(w, r) {
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:           server.URL + "/",
		APIKey:            "test-key",
		BranchID:          "b1",
		AgreementID:       "a1",
		RequestsPerSecond: 1000,
		MaxRetries:        3,
		RetryDelay:        time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "https://api.example.com"})
	require.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = NewClient(Config{APIKey: "k", BaseURL: "::bad"})
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestClient_GetPrices(t *testing.T) {
	api := &fakeAPI{prices: []map[string]any{
		{"nomenclature_id": "n1", "price": 450.5, "discount": nil, "discountPrice": "400,00"},
		{"nomenclature_id": 42, "price": "12,30"},
	}}
	client := newTestClient(t, api)

	items, err := client.GetPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, PriceItem{NomenclatureID: "n1", Price: "450.5", DiscountPrice: "400,00"}, items[0])
	assert.Equal(t, "42", items[1].NomenclatureID)
	assert.Equal(t, "12,30", items[1].Price)
}

func TestClient_GetNomenclaturesBatches(t *testing.T) {
	api := &fakeAPI{nomenclatures: map[string]map[string]any{}}
	ids := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		id := fmt.Sprintf("n%03d", i)
		ids = append(ids, id)
		api.nomenclatures[id] = map[string]any{"nomenclature_id": id, "code_1c": "C" + id, "name": "Item " + id}
	}
	api.nomenclatures[ids[0]]["code_1c"] = ""
	client := newTestClient(t, api)

	got, err := client.GetNomenclatures(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, int32(3), api.nomRequests.Load())
	assert.Len(t, got, 249)
	assert.Equal(t, "C"+ids[1], got[ids[1]].Code1C)
	_, ok := got[ids[0]]
	assert.False(t, ok, "entries without a 1C code are dropped")
}

func TestClient_ListSourceDescriptors(t *testing.T) {
	api := &fakeAPI{
		prices: []map[string]any{
			{"nomenclature_id": "n1", "price": "450,50"},
			{"nomenclature_id": "n2", "price": nil},
			{"nomenclature_id": "n3", "price": 10},
			{"nomenclature_id": "n4", "price": 20},
		},
		nomenclatures: map[string]map[string]any{
			"n1": {"nomenclature_id": "n1", "code_1c": "5620013", "name": "Профнастил С21"},
			"n2": {"nomenclature_id": "n2", "code_1c": "551666", "name": "Саморез"},
			"n4": {"nomenclature_id": "n4", "code_1c": "777", "name": "Beyond limit"},
		},
	}
	client := newTestClient(t, api)

	got, err := client.ListSourceDescriptors(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "5620013", got[0].Identifier)
	assert.Equal(t, "Профнастил С21", got[0].DisplayName)
	require.NotNil(t, got[0].Price)
	assert.Equal(t, "450.5", got[0].Price.String())

	assert.Equal(t, "551666", got[1].Identifier)
	assert.Nil(t, got[1].Price)
}

func TestClient_PriceQuotes(t *testing.T) {
	api := &fakeAPI{
		prices: []map[string]any{
			{"nomenclature_id": "n1", "price": "450,50", "discount": 5, "discountPrice": "428"},
			{"nomenclature_id": "n2", "price": ""},
			{"nomenclature_id": "n3", "price": 10},
		},
		nomenclatures: map[string]map[string]any{
			"n1": {"nomenclature_id": "n1", "code_1c": "5620013"},
			"n2": {"nomenclature_id": "n2", "code_1c": "551666"},
		},
	}
	client := newTestClient(t, api)

	quotes, err := client.PriceQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "5620013", quotes[0].Code)
	assert.Equal(t, "450,50", quotes[0].Price)
	assert.Equal(t, "5", quotes[0].Discount)
	assert.Equal(t, "428", quotes[0].DiscountPrice)
}

func TestClient_PriceQuotesEmpty(t *testing.T) {
	client := newTestClient(t, &fakeAPI{prices: []map[string]any{}})

	quotes, err := client.PriceQuotes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	api := &fakeAPI{status: http.StatusBadGateway}
	api.failures.Store(2)
	client := newTestClient(t, api)

	require.NoError(t, client.Ping(context.Background()))
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	api := &fakeAPI{status: http.StatusServiceUnavailable}
	api.failures.Store(10)
	client := newTestClient(t, api)

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, int32(7), api.failures.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	api := &fakeAPI{status: http.StatusForbidden}
	api.failures.Store(10)
	client := newTestClient(t, api)

	_, err := client.GetPrices(context.Background())
	require.ErrorIs(t, err, common.ErrUnexpectedResponse)
	assert.False(t, IsUnavailable(err))
	assert.Equal(t, int32(9), api.failures.Load())
}

func TestClient_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k", RetryDelay: time.Millisecond})
	require.NoError(t, err)

	_, err = client.GetPrices(context.Background())
	require.ErrorIs(t, err, common.ErrUnexpectedResponse)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: url, APIKey: "k", MaxRetries: 2, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	_, err = client.ListSourceDescriptors(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}
