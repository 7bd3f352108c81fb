package httputil

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hmis-api/pkg/errors"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		total, limit, pages int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{250, 100, 3},
	}
	for _, tt := range tests {
		p := NewPagination(1, tt.limit, tt.total)
		assert.Equal(t, tt.pages, p.Pages, "total=%d limit=%d", tt.total, tt.limit)
	}
}

func respond(err error) (*httptest.ResponseRecorder, Response) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondWithError(c, err)

	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestRespondWithError(t *testing.T) {
	w, resp := respond(errors.Validation("validation failed", errors.FieldError{Field: "email", Message: "email is required"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "email", resp.Errors[0].Field)

	w, resp = respond(errors.Conflict("doctor already has an appointment in this time slot", errors.ErrSchedulingConflict))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "doctor already has an appointment in this time slot", resp.Message)

	w, resp = respond(stderrors.New("pq: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, w.Body.String(), "pq:")
}
