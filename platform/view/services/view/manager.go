/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracing"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
)

const (
	SuccessLabel tracing.LabelName = "success"
	ViewLabel    tracing.LabelName = "view"
)

var logger = logging.MustGetLogger("view.manager")

// Manager runs views on behalf of the local node.
// Initiators are run on request, responders are spawned for every session opened by a remote party.
type Manager struct {
	sp       view.ServiceProvider
	comm     CommLayer
	me       view.Identity
	checker  LocalIdentityChecker
	registry *Registry
	tracer   trace.Tracer
	metrics  *Metrics

	ctxMutex   sync.RWMutex
	ctx        context.Context
	contextsMu sync.RWMutex
	contexts   map[string]*Context
}

func NewManager(
	sp view.ServiceProvider,
	comm CommLayer,
	me view.Identity,
	checker LocalIdentityChecker,
	registry *Registry,
	tracerProvider trace.TracerProvider,
	metricsProvider metrics.Provider,
) *Manager {
	return &Manager{
		sp:       sp,
		comm:     comm,
		me:       me,
		checker:  checker,
		registry: registry,
		tracer:   tracerProvider.Tracer("calls", tracing.WithLabelNames(SuccessLabel, ViewLabel)),
		metrics:  newMetrics(metricsProvider),
		ctx:      context.Background(),
		contexts: map[string]*Context{},
	}
}

// Me returns the default identity of the node
func (m *Manager) Me() view.Identity {
	return m.me
}

// Registry returns the view registry of the node
func (m *Manager) Registry() *Registry {
	return m.registry
}

func (m *Manager) NewView(id string, in []byte) (view.View, error) {
	return m.registry.NewView(id, in)
}

// InitiateView runs the passed view as the initiator of a new protocol instance
func (m *Manager) InitiateView(v view.View, ctx context.Context) (interface{}, error) {
	if ctx == nil {
		ctx = m.currentContext()
	}
	c, err := newRootContext(ctx, m.sp, "", m.comm, m.checker, m.me, nil, nil, m.tracer)
	if err != nil {
		return nil, err
	}
	m.putContext(c)
	defer m.deleteContext(c)

	logger.Debugf("[%s] initiate view [%s], context [%s]", m.me, GetName(v), c.ID())
	res, err := c.RunView(v, view.AsInitiator())
	m.metrics.Views.With(ViewLabel, GetName(v), SuccessLabel, boolLabel(err == nil)).Add(1)
	if err != nil {
		logger.Debugf("[%s] initiate view [%s], context [%s] failed [%s]", m.me, GetName(v), c.ID(), err)
		return nil, err
	}
	return res, nil
}

// Context returns the running context with the passed id
func (m *Manager) Context(contextID string) (view.Context, error) {
	m.contextsMu.RLock()
	defer m.contextsMu.RUnlock()

	c, ok := m.contexts[contextID]
	if !ok {
		return nil, errors.Errorf("context %s not found", contextID)
	}
	return c, nil
}

// Start listens on the master session until ctx is done
func (m *Manager) Start(ctx context.Context) {
	m.ctxMutex.Lock()
	m.ctx = ctx
	m.ctxMutex.Unlock()

	master := m.comm.MasterSession()
	for {
		select {
		case msg := <-master.Receive():
			go m.callView(msg)
		case <-ctx.Done():
			logger.Debugf("[%s] received done signal, stopping listening to messages on the master session", m.me)
			return
		}
	}
}

func (m *Manager) callView(msg *view.Message) {
	session, err := m.comm.NewSessionWithID(msg.SessionID, msg.ContextID, msg.FromPKID, msg)
	if err != nil {
		logger.Errorf("[%s] failed getting session for [%s]: %s", m.me, msg, err)
		return
	}

	responder, err := m.registry.NewResponder(msg.Caller)
	if err != nil {
		logger.Errorf("[%s] failed to find responder for [%s]: %s", m.me, msg.Caller, err)
		if err := session.SendError([]byte(err.Error())); err != nil {
			logger.Debugf("failed sending error back: %s", err)
		}
		m.comm.DeleteSession(msg.SessionID)
		return
	}

	if err := m.respond(responder, session, msg); err != nil {
		logger.Errorf("[%s] failed responding [%s]: %s", m.me, msg, err)
	}
}

func (m *Manager) respond(responder view.View, session view.Session, msg *view.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("respond triggered panic: %s\n%s\n", r, debug.Stack())
			err = errors.Errorf("failed responding [%s]", r)
		}
	}()

	c, err := newRootContext(m.currentContext(), m.sp, msg.ContextID, m.comm, m.checker, m.me, session, msg.FromPKID, m.tracer)
	if err != nil {
		return err
	}
	m.putContext(c)
	defer m.deleteContext(c)

	logger.Debugf("[%s] respond [from:%s], [sessionID:%s], [contextID:%s], [view:%s]", m.me, msg.From, msg.SessionID, msg.ContextID, GetName(responder))
	_, err = c.RunView(responder)
	m.metrics.Views.With(ViewLabel, GetName(responder), SuccessLabel, boolLabel(err == nil)).Add(1)
	if err != nil {
		logger.Debugf("[%s] respond failure [from:%s], [sessionID:%s] [%s]", m.me, msg.From, msg.SessionID, err)
		if err := session.SendError([]byte(err.Error())); err != nil {
			logger.Debugf("failed sending error back: %s", err)
		}
	}
	return nil
}

func (m *Manager) currentContext() context.Context {
	m.ctxMutex.RLock()
	defer m.ctxMutex.RUnlock()
	return m.ctx
}

func (m *Manager) putContext(c *Context) {
	m.contextsMu.Lock()
	defer m.contextsMu.Unlock()
	m.contexts[c.ID()] = c
	m.metrics.Contexts.Set(float64(len(m.contexts)))
}

func (m *Manager) deleteContext(c *Context) {
	m.contextsMu.Lock()
	defer m.contextsMu.Unlock()

	c.Dispose()
	if cur, ok := m.contexts[c.ID()]; ok && cur == c {
		delete(m.contexts, c.ID())
	}
	m.metrics.Contexts.Set(float64(len(m.contexts)))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
