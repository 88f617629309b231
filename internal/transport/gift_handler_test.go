package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"giftlist/internal/giftlist"
	"giftlist/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeAuth trusts the X-User-ID header so handlers see an authenticated caller.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil {
			middleware.RespondWithStatus(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), id, "tester", "USER")))
	})
}

func newGiftRouter(t *testing.T) http.Handler {
	t.Helper()
	registry := giftlist.NewRegistry(zap.NewNop())
	router := chi.NewRouter()
	NewGiftHandler(registry, giftlist.VariantMemory, zap.NewNop()).RegisterRoutes(router, fakeAuth)
	return router
}

func call(t *testing.T, h http.Handler, method, target string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if userID > 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) middleware.StatusResponse {
	t.Helper()
	var resp middleware.StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func listEntries(t *testing.T, h http.Handler, userID int64) []giftlist.Entry {
	t.Helper()
	w := call(t, h, http.MethodGet, "/api/v1/gifts/list", userID)
	if w.Code == http.StatusNoContent {
		return nil
	}
	require.Equal(t, http.StatusOK, w.Code)
	var entries []giftlist.Entry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entries))
	return entries
}

func TestGiftListEndpoints(t *testing.T) {
	h := newGiftRouter(t)

	require.Equal(t, http.StatusNoContent, call(t, h, http.MethodGet, "/api/v1/gifts/list", 7).Code)

	w := call(t, h, http.MethodPost, "/api/v1/gifts/list/add?item_id=42&quantity=3", 7)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, middleware.StatusResponse{Msg: "Gift added to list", Status: "ok", Code: http.StatusCreated}, decodeStatus(t, w))

	entries := listEntries(t, h, 7)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Available)
	giftPath := "/api/v1/gifts/list/" + strconv.FormatInt(entries[0].ID, 10)

	w = call(t, h, http.MethodPost, giftPath+"/purchase?quantity=5", 7)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "error", decodeStatus(t, w).Status)

	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, giftPath+"/purchase?quantity=2", 7).Code)
	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, giftPath+"/purchase", 7).Code)

	w = call(t, h, http.MethodGet, giftPath, 7)
	require.Equal(t, http.StatusOK, w.Code)
	var entry giftlist.Entry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entry))
	assert.Equal(t, 0, entry.Available)
	assert.Equal(t, 3, entry.Purchased)

	w = call(t, h, http.MethodGet, "/api/v1/gifts/list/report", 7)
	require.Equal(t, http.StatusOK, w.Code)
	var report struct {
		User      int64            `json:"user"`
		Purchased []map[string]any `json:"purchased"`
		Available []map[string]any `json:"available"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, int64(7), report.User)
	require.Len(t, report.Purchased, 1)
	assert.Equal(t, float64(3), report.Purchased[0]["quantity"])
	assert.Empty(t, report.Available)

	require.Equal(t, http.StatusOK, call(t, h, http.MethodDelete, giftPath, 7).Code)
	require.Equal(t, http.StatusNotFound, call(t, h, http.MethodDelete, giftPath, 7).Code)
}

func TestGiftListsAreIsolatedPerCaller(t *testing.T) {
	h := newGiftRouter(t)

	require.Equal(t, http.StatusCreated, call(t, h, http.MethodPost, "/api/v1/gifts/list/add?item_id=1", 1).Code)
	entries := listEntries(t, h, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Available)

	assert.Empty(t, listEntries(t, h, 2))
	path := "/api/v1/gifts/list/" + strconv.FormatInt(entries[0].ID, 10)
	require.Equal(t, http.StatusNotFound, call(t, h, http.MethodGet, path, 2).Code)
}

func TestGiftEndpointsRejectBadParameters(t *testing.T) {
	h := newGiftRouter(t)

	cases := []struct {
		method, target string
		want           int
	}{
		{http.MethodPost, "/api/v1/gifts/list/add", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/gifts/list/add?item_id=abc", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/gifts/list/add?item_id=1&quantity=0", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/gifts/list/add?item_id=1&quantity=two", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/gifts/list/zero", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/gifts/list/1/purchase?quantity=x", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/gifts/list/99", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			assert.Equal(t, tc.want, call(t, h, tc.method, tc.target, 3).Code)
		})
	}

	assert.Equal(t, http.StatusUnauthorized, call(t, h, http.MethodGet, "/api/v1/gifts/list", 0).Code)
}

func TestGiftReportAsText(t *testing.T) {
	h := newGiftRouter(t)
	require.Equal(t, http.StatusCreated, call(t, h, http.MethodPost, "/api/v1/gifts/list/add?item_id=5&quantity=2", 4).Code)

	w := call(t, h, http.MethodGet, "/api/v1/gifts/list/report?format=text", 4)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "Gift List Report for 4:\n"))
	assert.Contains(t, w.Body.String(), `  - {"id":5} (quantity: 2)`)
}

func TestRespondQueryCollapsesEmptyPayloads(t *testing.T) {
	for _, payload := range []interface{}{nil, []int{}, map[string]int{}, ""} {
		w := httptest.NewRecorder()
		respondQuery(w, zap.NewNop(), payload)
		assert.Equal(t, http.StatusNoContent, w.Code, "payload %#v", payload)
	}

	w := httptest.NewRecorder()
	respondQuery(w, zap.NewNop(), func() {})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGiftStatusMapsKinds(t *testing.T) {
	cases := map[giftlist.Kind]int{
		giftlist.KindValidation: http.StatusBadRequest,
		giftlist.KindNotFound:   http.StatusNotFound,
		giftlist.KindConflict:   http.StatusConflict,
		giftlist.KindInternal:   http.StatusInternalServerError,
	}
	for kind, want := range cases {
		code, _ := giftStatus(&giftlist.Error{Op: "test", Kind: kind})
		assert.Equal(t, want, code, kind.String())
	}

	code, msg := giftStatus(errors.New("connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", msg)
}

// brokenList panics on every operation it does not override.
type brokenList struct {
	giftlist.GiftList
}

func TestGiftRoutesRecoverPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	registry := giftlist.NewRegistry(zap.NewNop())
	registry.Register("broken", func(_ context.Context, _ giftlist.UserRef) (giftlist.GiftList, error) {
		return brokenList{}, nil
	})
	router := chi.NewRouter()
	NewGiftHandler(registry, "broken", zap.New(core)).RegisterRoutes(router, fakeAuth)

	w := call(t, router, http.MethodGet, "/api/v1/gifts/list", 1)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, middleware.StatusResponse{Msg: "internal server error", Status: "error", Code: http.StatusInternalServerError}, decodeStatus(t, w))
	assert.Equal(t, 1, logs.FilterMessage("Handler panicked").Len())
}

func TestSafeQueryEnvelopes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"status error", badRequest("gift_id must be a positive integer"), http.StatusBadRequest, "gift_id must be a positive integer"},
		{"unauthorized", unauthorized(), http.StatusUnauthorized, "unauthorized"},
		{"malformed body", fmt.Errorf("%w: unexpected EOF", middleware.ErrMalformedBody), http.StatusBadRequest, "invalid request body"},
		{"classified", &giftlist.Error{Op: "purchase_item", Kind: giftlist.KindConflict, Err: giftlist.ErrInsufficientStock}, http.StatusConflict, giftlist.ErrInsufficientStock.Error()},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := safeQuery(logger, giftStatus, func(w http.ResponseWriter, r *http.Request) error {
				return tc.err
			})
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, "/api/v1/gifts/list", nil))

			assert.Equal(t, tc.code, w.Code)
			resp := decodeStatus(t, w)
			assert.Equal(t, tc.code, resp.Code)
			assert.Equal(t, "error", resp.Status)
			assert.Contains(t, resp.Msg, tc.msg)
		})
	}

	assert.Equal(t, 1, logs.FilterMessage("Request failed").Len(), "only 5xx answers are logged as failures")
}

func TestOversizedQuantityIsRejected(t *testing.T) {
	router := newGiftRouter(t)

	w := call(t, router, http.MethodPost, "/api/v1/gifts/list/add?item_id=1&quantity="+strconv.Itoa(giftlist.MaxQuantity), 1)
	require.Equal(t, http.StatusCreated, w.Code)

	w = call(t, router, http.MethodPost, "/api/v1/gifts/list/add?item_id=1", 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", decodeStatus(t, w).Status)

	w = call(t, router, http.MethodPost, "/api/v1/gifts/list/add?item_id=2&quantity=9223372036854775807", 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	entries := listEntries(t, router, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, giftlist.MaxQuantity, entries[0].Available)
}
