package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/qrawareness/internal/models"
	"github.com/Lllllllleong/qrawareness/internal/services"
	"github.com/Lllllllleong/qrawareness/internal/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const browserUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/126.0 Mobile Safari/537.36"

func newTestHandler() *LandingHandler {
	logger := zap.NewNop()
	store := sessions.NewStore(time.Hour, nil)
	flow := services.NewFlowService(store, services.NewPersister(nil, time.Second, logger), nil, logger)
	h := NewLandingHandler(flow, logger)
	h.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return h
}

func do(h http.Handler, method, path, sessionID, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("User-Agent", browserUA)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeScreen(t *testing.T, rr *httptest.ResponseRecorder) models.ScreenResponse {
	t.Helper()
	var res models.ScreenResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	return res
}

// open lands a new visitor and returns the session id the service minted.
func open(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(h, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	return decodeScreen(t, rr).SessionID
}

func TestLandSetsCookie(t *testing.T) {
	h := newTestHandler()

	rr := do(h, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	res := decodeScreen(t, rr)
	assert.Equal(t, models.ScreenWelcome, res.Screen)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, res.SessionID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSessionFromCookie(t *testing.T) {
	h := newTestHandler()
	id := open(t, h)

	req := httptest.NewRequest(http.MethodPost, "/steps/qr-location", strings.NewReader(`{"qrLocation":"strada","consent":true}`))
	req.Header.Set("User-Agent", browserUA)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.ScreenProfile, decodeScreen(t, rr).Screen)
}

func TestFlowOverHTTP(t *testing.T) {
	h := newTestHandler()
	id := open(t, h)

	rr := do(h, http.MethodPost, "/steps/qr-location", id, `{"qrLocation":"strada","consent":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.ScreenProfile, decodeScreen(t, rr).Screen)

	rr = do(h, http.MethodPost, "/steps/profile", id,
		`{"ageRange":"18-25","gender":"Donna","birthProvince":"Torino","education":"Diploma superiore"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.ScreenConfirm, decodeScreen(t, rr).Screen)

	rr = do(h, http.MethodPost, "/steps/confirm", id, `{"email":"giulia@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	res := decodeScreen(t, rr)
	assert.Equal(t, models.ScreenDisclaimer, res.Screen)
	assert.NotEmpty(t, res.Collected)

	rr = do(h, http.MethodGet, "/export", id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="cybersecurity_data_20250310_120000.json"`, rr.Header().Get("Content-Disposition"))
	var export map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&export))
	assert.Equal(t, id, export["session_id"])
	assert.Equal(t, "Torino", export["birth_province"])
	assert.Contains(t, export["note"], "Email NON salvata")
	assert.NotContains(t, rr.Body.String(), "giulia")
}

func TestErrorStatusCodes(t *testing.T) {
	h := newTestHandler()
	id := open(t, h)

	t.Run("bad json", func(t *testing.T) {
		rr := do(h, http.MethodPost, "/steps/qr-location", id, `{"qrLocation":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("validation message", func(t *testing.T) {
		rr := do(h, http.MethodPost, "/steps/qr-location", id, `{"qrLocation":"strada","consent":false}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "Devi accettare il trattamento dati per continuare", body["error"])
	})

	t.Run("unknown session", func(t *testing.T) {
		rr := do(h, http.MethodPost, "/steps/qr-location", "missing", `{"qrLocation":"strada","consent":true}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("out of order", func(t *testing.T) {
		rr := do(h, http.MethodPost, "/steps/confirm", id, `{"email":"a@example.com"}`)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("export of unknown session", func(t *testing.T) {
		rr := do(h, http.MethodGet, "/export", "missing", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rr := do(h, http.MethodGet, "/steps/profile", id, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestResetIssuesNewSession(t *testing.T) {
	h := newTestHandler()
	id := open(t, h)

	rr := do(h, http.MethodPost, "/reset", id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	res := decodeScreen(t, rr)
	assert.NotEqual(t, id, res.SessionID)
	require.Len(t, rr.Result().Cookies(), 1)
	assert.Equal(t, res.SessionID, rr.Result().Cookies()[0].Value)
}

func TestStaleCookieGetsNewSession(t *testing.T) {
	h := newTestHandler()
	id := open(t, h)

	// Same cookie against an instance that never saw it, as after a restart.
	restarted := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", browserUA)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	rr := httptest.NewRecorder()
	restarted.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	res := decodeScreen(t, rr)
	assert.NotEqual(t, id, res.SessionID)
	assert.Equal(t, models.ScreenWelcome, res.Screen)
	require.Len(t, rr.Result().Cookies(), 1)
	assert.Equal(t, res.SessionID, rr.Result().Cookies()[0].Value)

	rr = do(restarted, http.MethodPost, "/steps/qr-location", id, `{"qrLocation":"strada","consent":true}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReturningVisitorKeepsSession(t *testing.T) {
	h := newTestHandler()
	id := open(t, h)
	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/steps/qr-location", id, `{"qrLocation":"strada","consent":true}`).Code)

	rr := do(h, http.MethodGet, "/", id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	res := decodeScreen(t, rr)
	assert.Equal(t, id, res.SessionID)
	assert.Equal(t, models.ScreenProfile, res.Screen)
}

func TestOptionsAndHealth(t *testing.T) {
	h := newTestHandler()

	rr := do(h, http.MethodGet, "/options", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var opts map[string][]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&opts))
	assert.Contains(t, opts, "qrLocations")
	assert.Contains(t, opts["genders"], "Femmina")

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/nope", "", "").Code)
}
