package jwt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"OpenCollab/internal/config"
	"OpenCollab/pkg/util/myjwt"
	"OpenCollab/pkg/xerr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(ContextUserKey), "username": c.GetString("username")})
	})
	return r
}

func TestAuth(t *testing.T) {
	config.GetConfig().JwtConfig.Key = "middleware-test-key"
	tok, err := myjwt.GenerateToken("u1", "alice")
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"valid", "Bearer " + tok, 0},
		{"missing", "", xerr.Unauthorized},
		{"wrong scheme", "Basic " + tok, xerr.Unauthorized},
		{"tampered", "Bearer " + tok + "x", xerr.Unauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.wantCode == 0 {
				assert.Equal(t, "u1", body["user_id"])
				assert.Equal(t, "alice", body["username"])
				return
			}
			assert.Equal(t, float64(tt.wantCode), body["code"])
		})
	}
}
