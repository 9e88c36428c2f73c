package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
	"github.com/shipos/shipos/modules/migration/services"
	"github.com/shipos/shipos/pkg/eventbus"
)

type RunEventHandler struct {
	log logrus.FieldLogger
}

func RegisterRunEventHandlers(bus eventbus.EventBus, log logrus.FieldLogger) *RunEventHandler {
	h := &RunEventHandler{log: log}
	bus.Subscribe(h.onRunFinished)
	return h
}

func (h *RunEventHandler) onRunFinished(e *services.RunFinishedEvent) {
	entry := h.log.WithFields(logrus.Fields{
		"migration-id": e.RunID.String(),
		"tenant-id":    e.TenantID.String(),
		"status":       e.Status,
		"customers":    e.Results.Customers,
		"packages":     e.Results.Packages,
		"mail-pieces":  e.Results.MailPieces,
		"invoices":     e.Results.Invoices,
		"row-errors":   len(e.Results.Errors),
	})
	if e.Status == migrationrun.StatusFailed {
		entry.Warn("migration run failed, re-run with the same source after fixing the cause")
		return
	}
	entry.Info("migration run finished")
}
