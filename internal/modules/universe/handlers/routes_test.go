package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/avramidis/optsentry/internal/modules/universe"
)

func setupTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := universe.NewRepository(db, zerolog.Nop())
	require.NoError(t, err)
	ranking := universe.NewRankingService(repo, zerolog.Nop())

	router := chi.NewRouter()
	NewHandler(repo, ranking, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func TestHandleGetAll_EmptyUniverse(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/universe/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var securities []universe.Security
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &securities))
	assert.Empty(t, securities)
}

func TestHandleUpsert_RoundTrip(t *testing.T) {
	router := setupTestRouter(t)

	body := `{"symbol": "MSFT", "name": "Microsoft", "last_price": 420, "iv_rank": 35, "can_add": true, "sector": "Technology", "score": 0.9}`
	req := httptest.NewRequest(http.MethodPost, "/universe/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/universe/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var securities []universe.Security
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &securities))
	require.Len(t, securities, 1)
	assert.Equal(t, "MSFT", securities[0].Symbol)
}

func TestHandleUpsert_MissingSymbol(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/universe/", bytes.NewBufferString(`{"name": "x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
