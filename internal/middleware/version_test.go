package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVersionRouter(captured **time.Time) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ClientVersionMiddleware())
	r.GET("/probe", func(c *gin.Context) {
		*captured = ClientVersion(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestClientVersionMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantParsed bool
	}{
		{name: "no header", header: "", wantStatus: http.StatusOK, wantParsed: false},
		{name: "valid RFC3339", header: "2026-03-14T10:00:00Z", wantStatus: http.StatusOK, wantParsed: true},
		{name: "valid with offset", header: "2026-03-14T10:00:00+05:30", wantStatus: http.StatusOK, wantParsed: true},
		{name: "malformed", header: "last tuesday", wantStatus: http.StatusBadRequest, wantParsed: false},
		{name: "unix epoch number", header: "1765543200", wantStatus: http.StatusBadRequest, wantParsed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured *time.Time
			r := newVersionRouter(&captured)

			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if tt.header != "" {
				req.Header.Set(ClientVersionHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantParsed {
				require.NotNil(t, captured)
				expected, err := time.Parse(time.RFC3339, tt.header)
				require.NoError(t, err)
				assert.True(t, captured.Equal(expected))
			} else {
				assert.Nil(t, captured)
			}
		})
	}
}
