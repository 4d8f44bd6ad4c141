// Package appointments provides the appointments domain module.
package appointments

import (
	"taller_portal_backend/internal/appointments/handler"
	"taller_portal_backend/internal/appointments/repository"
	"taller_portal_backend/internal/appointments/service"
	"taller_portal_backend/internal/events"
	apphttp "taller_portal_backend/internal/http"
	"taller_portal_backend/platform/logger"
	"taller_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the appointments domain module.
type Module struct {
	handler    *handler.Handler
	Service    *service.Service
	Repository *repository.Repository
}

// NewModule creates a new appointments module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, bus events.Bus, enqueuer service.OfferEnqueuer, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, enqueuer, log)
	h := handler.New(svc, val)

	return &Module{
		handler:    h,
		Service:    svc,
		Repository: repo,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "appointments"
}

// RegisterRoutes registers the module's routes under /api/v1/appointments.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	appointments := ctx.Protected.Group("/appointments")
	m.handler.RegisterRoutes(appointments)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
