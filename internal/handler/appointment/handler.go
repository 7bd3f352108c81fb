package appointment

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/handler"
	"github.com/jwalitptl/hmis-api/internal/middleware"
	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/pkg/errors"
	"github.com/jwalitptl/hmis-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error)
	Update(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason *string) (*model.Appointment, error)
	Availability(ctx context.Context, doctorID uuid.UUID, date model.Date, durationMinutes int) ([]model.TimeSlot, error)
}

// PatientLookup resolves the patient record behind a patient login
type PatientLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
}

type Handler struct {
	service  Service
	patients PatientLookup
}

func NewHandler(service Service, patients PatientLookup) *Handler {
	return &Handler{
		service:  service,
		patients: patients,
	}
}

// callerPatient returns the caller's own patient id when the caller has the
// patient role. Staff callers get ok with a nil id.
func (h *Handler) callerPatient(c *gin.Context) (uuid.UUID, bool) {
	role, _ := c.Get(middleware.ContextRole)
	if role != model.RolePatient {
		return uuid.Nil, true
	}

	userID, ok := c.Get(middleware.ContextUserID)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized("authentication required"))
		return uuid.Nil, false
	}
	patient, err := h.patients.GetByUserID(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		if errors.HasCode(err, errors.ErrNotFound) {
			err = errors.Forbidden("no patient record for this account")
		}
		httputil.RespondWithError(c, err)
		return uuid.Nil, false
	}
	return patient.ID, true
}

// loadOwned fetches the appointment, hiding other patients' appointments
// from patient callers.
func (h *Handler) loadOwned(c *gin.Context, id uuid.UUID) (*model.Appointment, bool) {
	own, ok := h.callerPatient(c)
	if !ok {
		return nil, false
	}

	appt, err := h.service.Get(c.Request.Context(), id)
	if err == nil && own != uuid.Nil && appt.PatientID != own {
		err = errors.NotFound("appointment", nil)
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	return appt, true
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	own, ok := h.callerPatient(c)
	if !ok {
		return
	}
	if own != uuid.Nil && req.PatientID != own {
		httputil.RespondWithError(c, errors.Forbidden("patients may only book their own appointments"))
		return
	}

	appt, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, "appointment booked", appt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParseUUID(c, "id")
	if !ok {
		return
	}

	appt, ok := h.loadOwned(c, id)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, "", appt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	page, ok := handler.ParsePage(c)
	if !ok {
		return
	}
	filters := &model.AppointmentFilters{
		Status: model.AppointmentStatus(c.Query("status")),
		Page:   page,
	}

	if raw := c.Query("date"); raw != "" {
		date, err := model.ParseDate(raw)
		if err != nil {
			httputil.RespondWithError(c, errors.Validation("invalid filter", errors.FieldError{
				Field: "date", Message: err.Error(),
			}))
			return
		}
		filters.Date = &date
	}
	if filters.DoctorID, ok = handler.ParseOptionalUUID(c, "doctor_id"); !ok {
		return
	}
	if filters.PatientID, ok = handler.ParseOptionalUUID(c, "patient_id"); !ok {
		return
	}

	appointments, total, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, appointments, filters.Page.Page, filters.Page.Limit, total)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, ok := handler.ParseUUID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	appt, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "appointment updated", appt)
}

// CancelAppointment soft-cancels; the body and its reason are optional
func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := handler.ParseUUID(c, "id")
	if !ok {
		return
	}

	if _, ok := h.loadOwned(c, id); !ok {
		return
	}

	var req model.CancelAppointmentRequest
	if c.Request.ContentLength > 0 {
		if !handler.BindJSON(c, &req) {
			return
		}
	}
	if req.Reason == nil {
		if reason, ok := c.GetQuery("reason"); ok {
			req.Reason = &reason
		}
	}

	appt, err := h.service.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "appointment cancelled", appt)
}

// GetDoctorAvailability lists free slots for a doctor on a date
func (h *Handler) GetDoctorAvailability(c *gin.Context) {
	doctorID, ok := handler.ParseUUID(c, "id")
	if !ok {
		return
	}

	date, err := model.ParseDate(c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid availability query", errors.FieldError{
			Field: "date", Message: err.Error(),
		}))
		return
	}

	duration := 0
	if raw := c.Query("duration"); raw != "" {
		if duration, err = strconv.Atoi(raw); err != nil || duration <= 0 {
			httputil.RespondWithError(c, errors.Validation("invalid availability query", errors.FieldError{
				Field: "duration", Message: "duration must be a positive integer",
			}))
			return
		}
	}

	slots, err := h.service.Availability(c.Request.Context(), doctorID, date, duration)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", gin.H{
		"doctor_id": doctorID,
		"date":      date,
		"slots":     slots,
	})
}
