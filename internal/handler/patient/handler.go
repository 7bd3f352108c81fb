package patient

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/handler"
	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/pkg/errors"
	"github.com/jwalitptl/hmis-api/pkg/httputil"
)

type Service interface {
	Register(ctx context.Context, req *model.RegisterPatientRequest) (*model.Patient, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
	Update(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	var req model.RegisterPatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	patient, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, "patient registered", patient)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := handler.ParseUUID(c, "id")
	if !ok {
		return
	}

	patient, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", patient)
}

func (h *Handler) ListPatients(c *gin.Context) {
	page, ok := handler.ParsePage(c)
	if !ok {
		return
	}
	filters := &model.PatientFilters{
		Search: c.Query("search"),
		Page:   page,
	}
	if raw := c.Query("include_inactive"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.RespondWithError(c, errors.Validation("invalid filter", errors.FieldError{
				Field: "include_inactive", Message: "include_inactive must be a boolean",
			}))
			return
		}
		filters.IncludeInactive = include
	}

	patients, total, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, patients, filters.Page.Page, filters.Page.Limit, total)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := handler.ParseUUID(c, "id")
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	patient, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "patient updated", patient)
}

// DeactivatePatient soft-deletes; the record stays readable
func (h *Handler) DeactivatePatient(c *gin.Context) {
	id, ok := handler.ParseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "patient deactivated", gin.H{"id": id})
}
