/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// RunViewOptions collects what RunView may override in the child context
type RunViewOptions struct {
	// AsInitiator makes the view the initiator of the child context
	AsInitiator bool
	// Call replaces the Call method of the view
	Call func(Context) (interface{}, error)
	// SameContext keeps session and initiator of the parent
	SameContext bool
	// Ctx replaces the go context of the parent
	Ctx context.Context
}

type RunViewOption func(*RunViewOptions) error

func CompileRunViewOptions(opts ...RunViewOption) (*RunViewOptions, error) {
	options := &RunViewOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

func AsInitiator() RunViewOption {
	return func(o *RunViewOptions) error {
		o.AsInitiator = true
		return nil
	}
}

func WithViewCall(f func(Context) (interface{}, error)) RunViewOption {
	return func(o *RunViewOptions) error {
		o.Call = f
		return nil
	}
}

// WithContext runs the view in the same context under a different go context,
// used to bind a child view to the lifetime of an errgroup.
func WithContext(ctx context.Context) RunViewOption {
	return func(o *RunViewOptions) error {
		o.SameContext = true
		o.Ctx = ctx
		return nil
	}
}

// Context gives a view information about the environment in which it is in execution
type Context interface {
	ServiceProvider

	StartSpanFrom(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span)

	ID() string

	RunView(view View, opts ...RunViewOption) (interface{}, error)

	// Me is the default signing identity of the node
	Me() Identity

	// IsMe tells whether the node holds the signing key of id
	IsMe(id Identity) bool

	// Initiator is the view that started the protocol, nil on the responder side
	Initiator() View

	// GetSession returns a session to the passed remote party for the given view caller.
	// Sessions are scoped by the caller view and cached.
	GetSession(caller View, party Identity) (Session, error)

	// Session is the inbound session a responder was started on
	Session() Session

	Context() context.Context

	// OnError registers a callback run when the enclosing view fails or panics
	OnError(callback func())
}
