package qogita

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListOffersReturnsResults(t *testing.T) {
	var gotAuth, gotAccept, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"variant": {"ean": "123"}, "price": {"amount": "10.00", "currency": "EUR"}},
			{"variant": {"ean": "456"}, "price": {"amount": "20.00", "currency": "EUR"}}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)

	offers, err := client.ListOffers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, offers, 1, "limit caps the batch")

	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, "application/json", gotAccept)
	require.Equal(t, "page_size=1", gotQuery)
}

func TestListOffersMissingKeyReturnsEmpty(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil)

	offers, err := client.ListOffers(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, offers)
	require.Zero(t, requests, "no request without an API key")
}

func TestListOffersNonOKStatusReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	offers, err := client.ListOffers(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, offers)
}

func TestListOffersMalformedBodyReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	offers, err := client.ListOffers(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, offers)
}

func TestListOffersNetworkFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	offers, err := client.ListOffers(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, offers)
}
