/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracing"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
)

// CommLayer opens and tracks the sessions of a node
type CommLayer interface {
	NewSession(callerViewID, contextID string, party view.Identity) (view.Session, error)
	NewSessionWithID(sessionID, contextID string, caller view.Identity, msg *view.Message) (view.Session, error)
	MasterSession() view.Session
	DeleteSession(sessionID string)
}

// LocalIdentityChecker tells whether an identity belongs to this node
type LocalIdentityChecker interface {
	IsMe(id view.Identity) bool
}

// shared is the state common to a context and all its children
type shared struct {
	sp      view.ServiceProvider
	id      string
	me      view.Identity
	caller  view.Identity
	comm    CommLayer
	checker LocalIdentityChecker
	tracer  trace.Tracer

	sessionsMutex sync.Mutex
	sessions      map[string]view.Session
}

// Context implements view.Context.
// Children created by RunView share sessions and services with their parent
// and may override the default session, the initiator and the go context.
type Context struct {
	*shared

	parent         *Context
	goContext      context.Context
	session        view.Session
	initiator      view.View
	errorCallbacks []func()
}

func newRootContext(goContext context.Context, sp view.ServiceProvider, contextID string, comm CommLayer, checker LocalIdentityChecker, me view.Identity, session view.Session, caller view.Identity, tracer trace.Tracer) (*Context, error) {
	if goContext == nil {
		return nil, errors.Errorf("a context should not be nil [%s]", string(debug.Stack()))
	}
	if len(contextID) == 0 {
		contextID = utils.GenerateUUID()
	}
	return &Context{
		shared: &shared{
			sp:       sp,
			id:       contextID,
			me:       me,
			caller:   caller,
			comm:     comm,
			checker:  checker,
			tracer:   tracer,
			sessions: map[string]view.Session{},
		},
		goContext: goContext,
		session:   session,
	}, nil
}

func (c *Context) StartSpanFrom(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, opts...)
}

func (c *Context) GetService(v interface{}) (interface{}, error) {
	return c.sp.GetService(v)
}

func (c *Context) ID() string {
	return c.id
}

func (c *Context) Me() view.Identity {
	return c.me
}

func (c *Context) IsMe(id view.Identity) bool {
	if c.me.Equal(id) {
		return true
	}
	return c.checker != nil && c.checker.IsMe(id)
}

// Caller returns the identity of the party that opened the default session, if any
func (c *Context) Caller() view.Identity {
	return c.caller
}

func (c *Context) Initiator() view.View {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.initiator != nil {
			return cur.initiator
		}
	}
	return nil
}

func (c *Context) Session() view.Session {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.session != nil {
			return cur.session
		}
	}
	return nil
}

func (c *Context) Context() context.Context {
	return c.goContext
}

func (c *Context) OnError(callback func()) {
	c.errorCallbacks = append(c.errorCallbacks, callback)
}

func (c *Context) GetSession(caller view.View, party view.Identity) (view.Session, error) {
	if party.IsNone() {
		return nil, errors.New("no party provided")
	}
	// answering the party that contacted us
	if s := c.Session(); s != nil && s.Info().Caller.Equal(party) && !s.Info().Closed {
		return s, nil
	}
	if caller == nil {
		return nil, errors.Errorf("a session should already exist, passed nil view")
	}

	viewID := GetIdentifier(caller)
	key := viewID + "/" + party.UniqueID()

	c.sessionsMutex.Lock()
	defer c.sessionsMutex.Unlock()

	if s, ok := c.sessions[key]; ok && !s.Info().Closed {
		logger.Debugf("[%s] reusing session [%s:%s]", c.me, viewID, party)
		return s, nil
	}
	s, err := c.comm.NewSession(viewID, c.id, party)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed opening session to [%s]", party)
	}
	c.sessions[key] = s
	return s, nil
}

func (c *Context) RunView(v view.View, opts ...view.RunViewOption) (res interface{}, err error) {
	options, err := view.CompileRunViewOptions(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed compiling options")
	}
	var initiator view.View
	if options.AsInitiator {
		initiator = v
	}

	goContext := c.goContext
	if options.Ctx != nil {
		goContext = options.Ctx
	}
	newCtx, span := c.StartSpanFrom(goContext, GetName(v), tracing.WithAttributes(
		tracing.String(ViewLabel, GetIdentifier(v)),
	), trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	var cc *Context
	if options.SameContext {
		cc = &Context{shared: c.shared, parent: c.parent, goContext: newCtx, session: c.session, initiator: c.initiator}
	} else {
		cc = &Context{shared: c.shared, parent: c, goContext: newCtx, initiator: initiator}
	}

	defer func() {
		if r := recover(); r != nil {
			cc.cleanup()
			res = nil
			logger.Errorf("caught panic while running view with [%v][%s]", r, debug.Stack())
			switch e := r.(type) {
			case error:
				err = errors.WithMessage(e, "caught panic")
			case string:
				err = errors.New(e)
			default:
				err = errors.Errorf("caught panic [%v]", e)
			}
		}
	}()

	if v == nil && options.Call == nil {
		return nil, errors.Errorf("no view passed")
	}
	if options.Call != nil {
		res, err = options.Call(cc)
	} else {
		res, err = v.Call(cc)
	}
	span.SetAttributes(tracing.Bool(SuccessLabel, err == nil))
	if err != nil {
		cc.cleanup()
		return nil, err
	}
	// callbacks registered in the same context fire if the enclosing view fails later
	if options.SameContext {
		c.errorCallbacks = append(c.errorCallbacks, cc.errorCallbacks...)
	}
	return res, nil
}

// Dispose closes every session opened in this context tree
func (c *Context) Dispose() {
	c.sessionsMutex.Lock()
	defer c.sessionsMutex.Unlock()

	if c.session != nil {
		c.comm.DeleteSession(c.session.Info().ID)
	}
	for k, s := range c.sessions {
		c.comm.DeleteSession(s.Info().ID)
		delete(c.sessions, k)
	}
}

func (c *Context) cleanup() {
	for _, callback := range c.errorCallbacks {
		safeInvoke(callback)
	}
	c.errorCallbacks = nil
}

func safeInvoke(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf("error callback panicked [%v]", r)
		}
	}()
	f()
}
