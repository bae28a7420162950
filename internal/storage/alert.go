package storage

import (
	"context"

	"github.com/sirupsen/logrus"

	"call-analytics-go/internal/types"
)

// Alerter escalates a write that could not be made durable to an operator.
type Alerter interface {
	Alert(ctx context.Context, err *types.PersistenceError)
}

type AlertFunc func(ctx context.Context, err *types.PersistenceError)

func (f AlertFunc) Alert(ctx context.Context, err *types.PersistenceError) { f(ctx, err) }

// LogAlerter writes an error-level entry tagged for alert routing.
type LogAlerter struct {
	Log *logrus.Entry
}

func (a LogAlerter) Alert(_ context.Context, err *types.PersistenceError) {
	if a.Log == nil || err == nil {
		return
	}
	a.Log.WithFields(logrus.Fields{
		"alert":    "persistence_failure",
		"call_id":  err.CallID,
		"attempts": err.Attempts,
		"error":    err.Error(),
	}).Error("call record could not be persisted; operator action required")
}

// MultiAlerter fans an alert out to several alerters.
type MultiAlerter []Alerter

func (m MultiAlerter) Alert(ctx context.Context, err *types.PersistenceError) {
	for _, a := range m {
		if a != nil {
			a.Alert(ctx, err)
		}
	}
}
