// Package leads provides the lead protection domain module.
package leads

import (
	"lead_protection_backend/internal/events"
	apphttp "lead_protection_backend/internal/http"
	"lead_protection_backend/internal/leads/handler"
	"lead_protection_backend/internal/leads/repository"
	"lead_protection_backend/internal/leads/service"
	"lead_protection_backend/platform/config"
	"lead_protection_backend/platform/logger"
	"lead_protection_backend/platform/validator"
)

// ModuleConfig combines the config interfaces the leads module reads.
type ModuleConfig interface {
	config.PolicyConfig
	config.SweepConfig
}

// Module represents the leads domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the lead store, service and handler. The store is either
// the Postgres store or, in development, the in-memory one.
func NewModule(repo repository.LeadStore, dependents service.DependentCounter, eventBus events.Bus, val *validator.Validator, cfg ModuleConfig, log *logger.Logger) *Module {
	svc := service.New(repo, dependents, eventBus, cfg.GetProtectionPolicy(), log,
		service.WithSweep(cfg.GetSweepBatchSize(), cfg.GetSweepConcurrency()))

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Service exposes the lead service for the scheduler and adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes registers the lead routes under /api/v1/leads and the lead
// settings under /api/v1/admin.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
