package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	assert.NoError(t, v.Var("2025-03", "period"))
	assert.Error(t, v.Var("2025-13", "period"))
	assert.Error(t, v.Var("March", "period"))
}

func TestHandleValidationError(t *testing.T) {
	type closeRequest struct {
		HoldcoID string `json:"holdco_id" binding:"required,uuid"`
		Period   string `json:"period" binding:"required,period"`
		DueDays  int    `json:"due_days" binding:"gte=0,lte=365"`
		Issue    string `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
		Pricing  string `json:"pricing" binding:"omitempty,oneof=COST_PLUS FIXED_MONTHLY"`
	}

	SetupValidator()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/close", func(c *gin.Context) {
		var req closeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	body := strings.NewReader(`{"period": "2025-3", "due_days": 400, "issue_date": "31/03/2025", "pricing": "FREE"}`)
	req := httptest.NewRequest(http.MethodPost, "/close", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

	messages := map[string]string{}
	for _, d := range resp.Error.Details {
		messages[d.Field] = d.Message
	}
	assert.Equal(t, "This field is required", messages["holdco_id"])
	assert.Equal(t, "Must be a period in the format YYYY-MM", messages["period"])
	assert.Equal(t, "Must be less than or equal to 365", messages["due_days"])
	assert.Equal(t, "Must be a date in the format YYYY-MM-DD", messages["issue_date"])
	assert.Equal(t, "Must be one of: COST_PLUS, FIXED_MONTHLY", messages["pricing"])
}
