package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const challengeScript = "var RecaptchaState = {\n" +
	"    site : '6LekMVAUAAAAAPDp1Cn7YMzjZynSb9csmX5V4a9P',\n" +
	"    challenge : '03AHJ_VuvY2rq',\n" +
	"    is_incorrect : false,\n" +
	"};\n"

func TestResolve(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("k")
		_, _ = w.Write([]byte(challengeScript))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, srv.Client())
	token, err := r.Resolve(context.Background(), "sitekey")

	require.NoError(t, err)
	assert.Equal(t, "03AHJ_VuvY2rq", token)
	assert.Equal(t, "sitekey", gotKey)
}

func TestResolve_MarkerMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("document.write('nothing here');"))
	}))
	defer srv.Close()

	_, err := NewResolver(srv.URL, srv.Client()).Resolve(context.Background(), "sitekey")

	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestResolve_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewResolver(srv.URL, srv.Client()).Resolve(context.Background(), "sitekey")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestExtract(t *testing.T) {
	token, err := Extract(challengeScript)
	require.NoError(t, err)
	assert.Equal(t, "03AHJ_VuvY2rq", token)

	_, err = Extract("  challenge : 'short-indent',\n")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}
