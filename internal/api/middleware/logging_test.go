package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yaroslav/modekeeper/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestLogger_RequestIDGenerated(t *testing.T) {
	var requestID string
	var fromRequest *zap.Logger

	router := gin.New()
	router.Use(RequestLogger(zap.NewNop()))
	router.GET("/test", func(c *gin.Context) {
		requestID = GetRequestID(c)
		fromRequest = logging.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, requestID, 36)
	assert.Equal(t, requestID, w.Header().Get(HeaderRequestID))
	assert.NotNil(t, fromRequest)
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	router := gin.New()
	router.Use(RequestLogger(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/bad", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/boom", entries[2].ContextMap()[logging.FieldPath])
	assert.EqualValues(t, http.StatusInternalServerError, entries[2].ContextMap()[logging.FieldStatusCode])
}

func TestGetLogger_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetLogger(c))
	assert.Empty(t, GetRequestID(c))
}

func TestGetLogger_FromRequestContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	c.Request = req.WithContext(logging.WithLogger(req.Context(), zap.New(core)))

	GetLogger(c).Info("hello")
	assert.Equal(t, 1, logs.FilterMessage("hello").Len())
}
