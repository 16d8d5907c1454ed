// Package source defines how the console reads the border router daemon:
// its service status, its property bag and property change notifications.
package source

import (
	"context"
	"errors"

	"wsbr-console/models"
)

var (
	// ErrNotReady means the daemon is up but has not published its properties yet.
	ErrNotReady = errors.New("daemon properties not ready")
	// ErrSourceInvalid means the daemon endpoint exists but cannot be read.
	ErrSourceInvalid = errors.New("daemon properties invalid")
	// ErrUnknownService is returned for services that are not configured.
	ErrUnknownService = errors.New("unknown service")
)

// RoutingSource is a connection to one daemon instance.
type RoutingSource interface {
	// Properties returns the current property bag, ErrNotReady or ErrSourceInvalid.
	Properties(ctx context.Context) (models.Properties, error)
	// Subscribe streams the names of changed properties until ctx is done.
	Subscribe(ctx context.Context) (<-chan string, error)
	Close() error
}

// Connector opens a RoutingSource for a named service.
type Connector interface {
	Connect(service string) (RoutingSource, error)
}

// StatusSource reports whether a service is installed and running.
type StatusSource interface {
	Status(ctx context.Context, service string) (models.ServiceStatus, error)
}

// notify does a non-blocking send; a full channel already has a pending
// notification for the reader.
func notify(ch chan string, prop string) {
	select {
	case ch <- prop:
	default:
	}
}
