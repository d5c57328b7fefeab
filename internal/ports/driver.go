package ports

import (
	"context"

	"horizon-bridge/internal/domain/model"
)

// StatusCode is the per-command result reported back to the host.
type StatusCode int

const (
	StatusOK                 StatusCode = 200
	StatusBadRequest         StatusCode = 400
	StatusNotFound           StatusCode = 404
	StatusServerError        StatusCode = 500
	StatusNotImplemented     StatusCode = 501
	StatusServiceUnavailable StatusCode = 503
)

// Driver is the inbound port the host transport drives. Implemented by the
// lifecycle controller.
type Driver interface {
	// AvailableEntities lists the entities of every ready account.
	AvailableEntities() []model.Entity

	// Subscribe marks entities as observed by the host and pushes one fresh
	// state update per id. Safe to call before initialization has run: the
	// implementation performs an emergency initialization pass first.
	Subscribe(ctx context.Context, entityIDs []string)

	// HandleCommand dispatches an abstract command to the owning entity.
	// Failures are converted to a status code, never propagated.
	HandleCommand(ctx context.Context, entityID, cmd string, params map[string]any) StatusCode

	// OnRemoteConnect is invoked when the host (re)connects. Reloads config
	// and initializes entities when needed.
	OnRemoteConnect(ctx context.Context)

	// OnRemoteDisconnect is invoked when the host drops the connection.
	OnRemoteDisconnect(ctx context.Context)
}
