// Package audit registra eventos de seguridad en el repositorio de auditoría
// y los refleja en el log estructurado. Una falla al persistir nunca aborta
// la operación que la originó.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	"github.com/dropDatabas3/mcpd/internal/observability/logger"
)

// Event describe un hecho auditable. Los campos opcionales pueden ir vacíos.
type Event struct {
	Action               string
	ActorID              string
	ClientRegistrationID string
	McpServerID          string
	Detail               string
}

// Recorder persiste entradas de auditoría. best-effort: los errores se
// loguean y se descartan.
type Recorder struct {
	repo repository.AuditLogRepository
}

func NewRecorder(repo repository.AuditLogRepository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Record(ctx context.Context, ev Event) {
	log := logger.From(ctx).With(
		logger.Component("audit"),
		logger.Action(ev.Action),
		logger.ClientID(ev.ClientRegistrationID),
	)
	if r.repo != nil {
		entry := repository.AuditLogEntry{
			ID:                   uuid.NewString(),
			Action:               ev.Action,
			ActorID:              ev.ActorID,
			ClientRegistrationID: ev.ClientRegistrationID,
			McpServerID:          ev.McpServerID,
			Detail:               ev.Detail,
		}
		if err := r.repo.Append(ctx, entry); err != nil {
			log.Error("audit append failed", logger.Err(err))
			return
		}
	}
	log.Info("audit event", logger.String("detail", ev.Detail))
}
