package status

import (
	"context"
	"errors"

	"duet-backup/core/logger"
	"duet-backup/core/reconcile"
	"duet-backup/core/schedule"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Scheduler is the part of schedule.Scheduler the handler uses.
type Scheduler interface {
	Status() schedule.Status
	Trigger(ctx context.Context) (*reconcile.Run, error)
}

// Planner computes a dry run.
type Planner interface {
	Plan(ctx context.Context) (*reconcile.Plan, error)
}

// Handler handles HTTP requests for the backup status.
type Handler struct {
	sched   Scheduler
	planner Planner
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(sched Scheduler, planner Planner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sched: sched, planner: planner, logger: logger}
}

// RegisterRoutes registers the status routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/status", h.HandleStatus)
	app.Post("/backup", h.HandleBackup)
	if h.planner != nil {
		app.Get("/plan", h.HandlePlan)
	}
}

// HandleStatus returns the scheduler snapshot.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(h.sched.Status())
}

// HandleBackup runs a pass and returns its record.
func (h *Handler) HandleBackup(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	l.Info("Backup requested")

	run, err := h.sched.Trigger(c.UserContext())
	if err == nil {
		return c.JSON(run)
	}

	status := fiber.StatusInternalServerError
	if errors.Is(err, reconcile.ErrEmptySource) {
		status = fiber.StatusConflict
	}
	l.Warn("Requested backup failed", zap.Error(err))
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"run":   run,
	})
}

// HandlePlan returns what a pass would do.
func (h *Handler) HandlePlan(c *fiber.Ctx) error {
	plan, err := h.planner.Plan(c.UserContext())
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, reconcile.ErrEmptySource) {
			status = fiber.StatusConflict
		}
		logger.WithRayID(h.logger, c).Warn("Plan failed", zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(plan)
}
