package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/pkg/errors"
	"github.com/jwalitptl/hmis-api/pkg/httputil"
	"github.com/jwalitptl/hmis-api/pkg/validator"
)

// ParseUUID reads a UUID path parameter, writing a 400 on failure
func ParseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid "+param, errors.FieldError{
			Field: param, Message: param + " must be a valid UUID",
		}))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON binds and validates the request body, writing a 400 on failure
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, validator.FromBindError(err))
		return false
	}
	return true
}

// ParsePage reads page and limit query parameters. Missing values take
// defaults; malformed ones are rejected.
func ParsePage(c *gin.Context) (model.Page, bool) {
	var page model.Page
	for _, q := range []struct {
		name string
		dst  *int
	}{{"page", &page.Page}, {"limit", &page.Limit}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.RespondWithError(c, errors.Validation("invalid pagination", errors.FieldError{
				Field: q.name, Message: q.name + " must be a positive integer",
			}))
			return page, false
		}
		*q.dst = n
	}
	return page.Normalize(), true
}

// ParseOptionalUUID reads a UUID query parameter; empty yields uuid.Nil
func ParseOptionalUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid "+name, errors.FieldError{
			Field: name, Message: name + " must be a valid UUID",
		}))
		return uuid.Nil, false
	}
	return id, true
}
