package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pogoda1/parsik/internal/extractor"
)

func TestFetchPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/parsing/getAllEventsForParsing", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"data":[{"id":"a1","input":"Концерт"},{"id":"a2","input":"Лекция"}]}}`))
	}))
	defer server.Close()

	b := NewBackend(server.URL+"/parsing/", "tok", time.Second)
	items, err := b.FetchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: "a1", Input: "Концерт"}, {ID: "a2", Input: "Лекция"}}, items)
}

func TestFetchPending_NumericIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"data":[{"id":1017,"input":"Выставка"}]}}`))
	}))
	defer server.Close()

	items, err := NewBackend(server.URL, "", time.Second).FetchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: "1017", Input: "Выставка"}}, items)
}

func TestFetchPending_Errors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"token expired"}`))
		},
		"body": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(h)
			defer server.Close()

			_, err := NewBackend(server.URL, "tok", time.Second).FetchPending(context.Background())
			var se *SyncError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, "fetch", se.Op)
		})
	}
}

func TestPostResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fillParsingEventResult", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"id":"a1","result":{"errorCode":"5","errorText":"DATE_IN_PAST"}}`, string(body))
		w.Write([]byte(`{"status":"saved"}`))
	}))
	defer server.Close()

	b := NewBackend(server.URL, "", time.Second)
	res := extractor.ErrorResult(extractor.NewError(extractor.DateInPast, nil))
	ack, err := b.PostResult(context.Background(), "a1", res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"saved"}`, string(ack))
}

func TestPostResult_ErrorKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("oops"))
	}))
	defer server.Close()

	ack, err := NewBackend(server.URL, "", time.Second).PostResult(context.Background(), "a1", map[string]string{})
	var se *SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)

	var s string
	require.NoError(t, json.Unmarshal(ack, &s))
	assert.Equal(t, "oops", s)
}

func TestBackend_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewBackend(url, "", time.Second).FetchPending(context.Background())
	var se *SyncError
	require.True(t, errors.As(err, &se))
	assert.Zero(t, se.Status)
}
