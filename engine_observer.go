package goSession

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/session"
)

// engineObserver counts backend activity reported by sessions.
type engineObserver struct {
	engine *Engine
}

var _ session.Observer = engineObserver{}

func (o engineObserver) FullLoad(key string, fields int, err error) {
	o.engine.metricInc(MetricFullLoad)
	if err != nil {
		o.backendError(key, err)
	}
}

func (o engineObserver) FieldFetch(key, field string, found bool, err error) {
	o.engine.metricInc(MetricFieldFetch)
	if err != nil {
		o.backendError(key, err)
		return
	}
	if !found {
		o.engine.metricInc(MetricFieldMiss)
	}
}

func (o engineObserver) DecodeFailure(key, field string, err error) {
	o.engine.metricInc(MetricDecodeFailure)
	o.engine.logger.Warn("goSession: stored session field could not be decoded",
		"key", key,
		"field", field,
		"error", err,
	)
	o.engine.emitAudit(context.Background(), auditEventDecodeFailure, false, "", err, func() map[string]string {
		return map[string]string{"key": key, "field": field}
	})
}

func (o engineObserver) backendError(key string, err error) {
	if !errors.Is(err, session.ErrBackendUnavailable) {
		return
	}
	o.engine.metricInc(MetricBackendError)
	o.engine.logger.Error("goSession: session backend unavailable", "key", key, "error", err)
	o.engine.emitAudit(context.Background(), auditEventBackendDegraded, false, "", err, func() map[string]string {
		return map[string]string{"key": key}
	})
}
