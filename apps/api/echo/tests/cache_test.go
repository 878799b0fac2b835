package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/registrar/core/cache"
	testutil "github.com/trezcool/registrar/tests"
)

func Test_cacheApi(t *testing.T) {
	app, stack := newApp(t)
	testutil.CreateFaculty(t, stack.Academics, "SCI", "Science")

	stats := func(path string) cache.Stats {
		req, rec := newRequest(http.MethodGet, path)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var s cache.Stats
		decode(t, rec, &s)
		return s
	}

	// warm the faculties namespace
	req, rec := newRequest(http.MethodGet, "/api/faculties")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stats("/api/cache/faculties/stats").Size)

	req, rec = newRequest(http.MethodGet, "/api/cache/stats")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []cache.Stats
	decode(t, rec, &all)
	assert.Len(t, all, len(stack.Registry.Namespaces()))

	req, rec = newRequest(http.MethodPost, "/api/cache/faculties/clear")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, stats("/api/cache/faculties/stats").Size)

	req, rec = newRequest(http.MethodGet, "/api/cache/nope/stats")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req, rec = newRequest(http.MethodPost, "/api/cache/clear")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_home(t *testing.T) {
	app, _ := newApp(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
