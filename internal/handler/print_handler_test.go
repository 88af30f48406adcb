// internal/handler/print_handler_test.go
package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"print-service/internal/config"
	"print-service/internal/journal"
	"print-service/internal/model"
	"print-service/internal/session"
	"print-service/internal/utils"
)

func newTestRouter(t *testing.T) *gin.Engine {
	router, _ := newTestRouterWithBus(t)
	return router
}

func newTestRouterWithBus(t *testing.T) (*gin.Engine, *EventBus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	eventBus := NewEventBus(logger)
	go eventBus.Start()

	h := NewPrintHandler(
		session.NewRunner(logger),
		journal.Disabled{},
		eventBus,
		config.PrinterConfig{
			Family:         string(model.FamilyESCPOS),
			TimeoutSeconds: model.DefaultTimeoutSeconds,
			CharsPerLine:   model.DefaultCharsPerLine,
		},
		logger,
	)

	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router, eventBus
}

func postPrint(t *testing.T, router *gin.Engine, body PrintRequest) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/print", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) (utils.APIResponse, PrintResponse) {
	t.Helper()
	var envelope utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	var result PrintResponse
	if envelope.Data != nil {
		raw, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &result))
	}
	return envelope, result
}

func TestPrintWithoutDestinationEchoesCommand(t *testing.T) {
	router := newTestRouter(t)
	cmd := []byte{0x1B, 0x40, 'H', 'I'}

	rec := postPrint(t, router, PrintRequest{
		Family: "escpos",
		Data:   base64.StdEncoding.EncodeToString(cmd),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	envelope, result := decodeResponse(t, rec)
	assert.True(t, envelope.Success)
	assert.Equal(t, model.ResultSuccess, result.Result)
	assert.NotEqual(t, uuid.Nil, result.JobID)

	echoed, err := base64.StdEncoding.DecodeString(result.Output)
	require.NoError(t, err)
	assert.Equal(t, cmd, echoed)
}

func TestPrintAcceptsPlainText(t *testing.T) {
	router := newTestRouter(t)

	rec := postPrint(t, router, PrintRequest{
		Family: "escpos",
		Text:   "TOTAL 12.50",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, result := decodeResponse(t, rec)
	assert.Equal(t, model.ResultSuccess, result.Result)

	echoed, err := base64.StdEncoding.DecodeString(result.Output)
	require.NoError(t, err)
	assert.Equal(t, []byte("TOTAL 12.50"), echoed)
}

func TestPrintDefaultsFamilyFromConfig(t *testing.T) {
	router := newTestRouter(t)

	rec := postPrint(t, router, PrintRequest{
		Data: base64.StdEncoding.EncodeToString([]byte("receipt")),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, result := decodeResponse(t, rec)
	assert.Equal(t, model.ResultSuccess, result.Result)
}

func TestPrintRejectsUnknownFamily(t *testing.T) {
	router := newTestRouter(t)

	rec := postPrint(t, router, PrintRequest{Family: "dotmatrix"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope, _ := decodeResponse(t, rec)
	assert.False(t, envelope.Success)
}

func TestPrintRejectsBadBase64(t *testing.T) {
	router := newTestRouter(t)

	rec := postPrint(t, router, PrintRequest{Family: "escpos", Data: "not-base64!!"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrintRejectsMalformedDestination(t *testing.T) {
	router := newTestRouter(t)

	rec := postPrint(t, router, PrintRequest{
		Family:      "escpos",
		Destination: "usb:zz:0000",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectedRequestPublishesNoEvents(t *testing.T) {
	router, bus := newTestRouterWithBus(t)
	events, cancel := bus.Subscribe()
	defer cancel()

	rec := postPrint(t, router, PrintRequest{
		Family:      "escpos",
		Destination: "usb:zz:0000",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	select {
	case ev := <-events:
		t.Fatalf("unexpected %q event for a rejected request", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimeoutZeroDisablesDeadline(t *testing.T) {
	h := &PrintHandler{defaults: config.PrinterConfig{TimeoutSeconds: 300}}

	zero, explicit := 0, 45
	assert.Equal(t, 300, h.resolveTimeout(nil))
	assert.Equal(t, 0, h.resolveTimeout(&zero))
	assert.Equal(t, 45, h.resolveTimeout(&explicit))

	var req PrintRequest
	require.NoError(t, json.Unmarshal([]byte(`{"options":{"timeout_seconds":0}}`), &req))
	require.NotNil(t, req.Options.TimeoutSeconds)
	assert.Equal(t, 0, *req.Options.TimeoutSeconds)

	req = PrintRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"options":{"cut":true}}`), &req))
	assert.Nil(t, req.Options.TimeoutSeconds)
}

func TestListJobsWithoutJournal(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
}

func TestGetJobNotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobRejectsBadID(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
