package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kdduha/bill-parser/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, svc billService) http.Handler {
	t.Helper()
	h, _ := newTestHandler(t, svc, 1<<20)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewRouter(logger, config.ServerConfig{ThrottleLimit: 4, Timeout: 5 * time.Second}, h)
}

func TestRouter_ParseBill(t *testing.T) {
	svc := &stubService{reply: receiptJSON}
	srv := httptest.NewServer(newTestRouter(t, svc))
	defer srv.Close()

	req := uploadRequest(t, srv.URL+"/parse-bill", "image", "receipt.jpg", fakeImage)
	req.RequestURI = ""
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, receiptJSON, string(body))
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parse-bill", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
