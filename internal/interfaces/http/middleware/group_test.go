package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/icledger/internal/infrastructure/logger"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupRouter(cfg GroupConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GroupWithConfig(cfg))
	handler := func(c *gin.Context) {
		groupID, ok := GetGroupID(c)
		c.JSON(http.StatusOK, gin.H{
			"group_id":  groupID.String(),
			"ok":        ok,
			"actor":     GetActor(c),
			"ctx_group": logger.GetGroupID(c.Request.Context()),
			"ctx_actor": logger.GetActor(c.Request.Context()),
		})
	}
	router.GET("/api/v1/subsidiaries", handler)
	router.GET("/health", handler)
	return router
}

func TestGroup(t *testing.T) {
	groupID := uuid.New()

	tests := []struct {
		name       string
		path       string
		header     string
		actor      string
		wantStatus int
		wantActor  string
	}{
		{"valid group and actor", "/api/v1/subsidiaries", groupID.String(), "controller@holdco", http.StatusOK, "controller@holdco"},
		{"default actor", "/api/v1/subsidiaries", groupID.String(), "", http.StatusOK, "api"},
		{"missing header", "/api/v1/subsidiaries", "", "", http.StatusBadRequest, ""},
		{"malformed header", "/api/v1/subsidiaries", "not-a-uuid", "", http.StatusBadRequest, ""},
		{"nil uuid", "/api/v1/subsidiaries", uuid.Nil.String(), "", http.StatusBadRequest, ""},
		{"skipped path", "/health", "", "", http.StatusOK, ""},
	}

	router := groupRouter(DefaultGroupConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(GroupHeaderKey, tt.header)
			}
			if tt.actor != "" {
				req.Header.Set(ActorHeaderKey, tt.actor)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				var resp dto.Response
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				require.NotNil(t, resp.Error)
				assert.Equal(t, dto.ErrCodeMissingGroup, resp.Error.Code)
				return
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantActor, body["actor"])
			if tt.header != "" {
				assert.Equal(t, tt.header, body["group_id"])
				assert.Equal(t, tt.header, body["ctx_group"])
				assert.Equal(t, tt.wantActor, body["ctx_actor"])
			} else {
				assert.Equal(t, false, body["ok"])
			}
		})
	}
}
