package ingest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "image/*", r.Header.Get("Accept"))
			w.Write(jpegBytes)
		case "/big":
			w.Write(bytes.Repeat([]byte{0x01}, 2048))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write(jpegBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := server.Client()
	client.Timeout = 50 * time.Millisecond
	fetcher := NewRemoteFetcher(client, 1024)
	ctx := context.Background()

	data, err := fetcher.Fetch(ctx, server.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)

	_, err = fetcher.Fetch(ctx, server.URL+"/big")
	assert.ErrorIs(t, err, ErrRemoteTooLarge)

	_, err = fetcher.Fetch(ctx, server.URL+"/missing")
	assert.ErrorContains(t, err, "unexpected status 404")

	_, err = fetcher.Fetch(ctx, server.URL+"/slow")
	assert.Error(t, err)
}
