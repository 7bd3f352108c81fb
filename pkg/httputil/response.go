package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hmis-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Data       interface{}         `json:"data,omitempty"`
	Errors     []errors.FieldError `json:"errors,omitempty"`
	Pagination *Pagination         `json:"pagination,omitempty"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(page, limit, total int) *Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// RespondWithSuccess sends a 200 response
func RespondWithSuccess(c *gin.Context, message string, data interface{}) {
	RespondWithStatus(c, http.StatusOK, message, data)
}

func RespondWithCreated(c *gin.Context, message string, data interface{}) {
	RespondWithStatus(c, http.StatusCreated, message, data)
}

func RespondWithStatus(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RespondWithPagination sends a list with its pagination metadata
func RespondWithPagination(c *gin.Context, data interface{}, page, limit, total int) {
	c.JSON(http.StatusOK, Response{
		Success:    true,
		Data:       data,
		Pagination: NewPagination(page, limit, total),
	})
}

// RespondWithError maps err to a status code and failure envelope. Errors
// that are not AppErrors are treated as internal and their detail hidden.
func RespondWithError(c *gin.Context, err error) {
	appErr := errors.As(err)
	if appErr == nil {
		appErr = errors.Internal(err)
	}

	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		log.Ctx(c.Request.Context()).Error().
			Err(appErr.Err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
	}

	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Message: appErr.Message,
		Errors:  appErr.Fields,
	})
}
