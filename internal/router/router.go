package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hmis-api/internal/handler/appointment"
	"github.com/jwalitptl/hmis-api/internal/handler/health"
	"github.com/jwalitptl/hmis-api/internal/handler/patient"
	"github.com/jwalitptl/hmis-api/internal/handler/prometheus"
	"github.com/jwalitptl/hmis-api/internal/middleware"
	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/pkg/validator"
)

type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	RateLimit      rate.Limit
	RateBurst      int
	RateEnabled    bool
	AllowedOrigins []string
	MaxBodySize    int64
}

type Router struct {
	engine       *gin.Engine
	auth         *middleware.AuthMiddleware
	appointmentH *appointment.Handler
	patientH     *patient.Handler
	healthH      *health.Handler
	metricsH     *prometheus.Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	appointmentH *appointment.Handler,
	patientH *patient.Handler,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	config RouterConfig,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	validator.RegisterJSONTagNames()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		metricsH.Middleware(),
		middleware.CORS(config.AllowedOrigins),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.ErrorHandler(),
	)
	if config.RateEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	r := &Router{
		engine:       engine,
		auth:         auth,
		appointmentH: appointmentH,
		patientH:     patientH,
		healthH:      healthH,
		metricsH:     metricsH,
	}
	r.setup(config)
	return r
}

func (r *Router) setup(config RouterConfig) {
	r.healthH.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", r.metricsH.Handler())

	api := r.engine.Group("/api")
	api.Use(
		middleware.Timeout(config.RequestTimeout),
		middleware.SizeLimit(config.MaxBodySize),
		r.auth.Authenticate(),
	)

	r.setupAppointmentRoutes(api)
	r.setupPatientRoutes(api)
}

var (
	staff          = model.StaffRoles
	frontDesk      = []model.Role{model.RoleAdmin, model.RoleDoctor, model.RoleNurse, model.RoleReceptionist}
	bookers        = append(append([]model.Role{}, frontDesk...), model.RolePatient)
	staffOrPatient = append(append([]model.Role{}, staff...), model.RolePatient)
	registrars     = []model.Role{model.RoleAdmin, model.RoleNurse, model.RoleReceptionist}
)

func (r *Router) setupAppointmentRoutes(rg *gin.RouterGroup) {
	h := r.appointmentH

	appointments := rg.Group("/appointments")
	{
		appointments.POST("", middleware.RequireRole(bookers...), h.CreateAppointment)
		appointments.GET("", middleware.RequireRole(staff...), h.ListAppointments)
		appointments.GET("/:id", middleware.RequireRole(staffOrPatient...), h.GetAppointment)
		appointments.PUT("/:id", middleware.RequireRole(frontDesk...), h.UpdateAppointment)
		appointments.DELETE("/:id", middleware.RequireRole(bookers...), h.CancelAppointment)
	}

	rg.GET("/doctors/:id/availability", h.GetDoctorAvailability)
}

func (r *Router) setupPatientRoutes(rg *gin.RouterGroup) {
	h := r.patientH

	patients := rg.Group("/patients")
	{
		patients.POST("", middleware.RequireRole(registrars...), h.RegisterPatient)
		patients.GET("", middleware.RequireRole(staff...), h.ListPatients)
		patients.GET("/:id", middleware.RequireRole(staff...), h.GetPatient)
		patients.PUT("/:id", middleware.RequireRole(frontDesk...), h.UpdatePatient)
		patients.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeactivatePatient)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
