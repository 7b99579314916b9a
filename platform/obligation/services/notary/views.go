/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package notary

import (
	"reflect"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils"
	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/session"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	perrors "github.com/pkg/errors"
)

type Request struct {
	Tx *ledger.SignedTransaction `json:"tx"`
}

// Response carries either the notary signature or the reason of the refusal
type Response struct {
	Signature *ledger.Signature `json:"signature,omitempty"`
	Conflict  *ConflictError    `json:"conflict,omitempty"`
	Missing   bool              `json:"missing,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (r *Response) err() error {
	switch {
	case r.Conflict != nil:
		return r.Conflict
	case r.Missing:
		return perrors.Wrap(ErrMissingSignatures, r.Error)
	case len(r.Error) != 0:
		return perrors.Wrap(ErrRefused, r.Error)
	case r.Signature == nil:
		return perrors.New("empty notary response")
	}
	return nil
}

// RequestView asks the notary of a transaction to notarise it
type RequestView struct {
	tx      *ledger.SignedTransaction
	timeout time.Duration
}

func NewRequestView(tx *ledger.SignedTransaction, timeout time.Duration) *RequestView {
	return &RequestView{tx: tx, timeout: timeout}
}

func (v *RequestView) Call(ctx view.Context) (interface{}, error) {
	notary := v.tx.Tx.Notary
	s, err := session.NewJSON(ctx, v, notary.Identity, v.timeout)
	if err != nil {
		return nil, perrors.WithMessagef(err, "failed opening session to notary [%s]", notary)
	}
	if err := s.Send(&Request{Tx: v.tx}); err != nil {
		return nil, perrors.WithMessage(err, "failed sending request to notary")
	}
	res := &Response{}
	if err := s.Receive(res); err != nil {
		return nil, perrors.WithMessagef(err, "failed receiving response from notary [%s]", notary)
	}
	if err := res.err(); err != nil {
		return nil, err
	}
	return res.Signature, nil
}

// Responder serves notarisation requests on the notary node
type Responder struct{}

func (r *Responder) Call(ctx view.Context) (interface{}, error) {
	service, err := GetService(ctx)
	if err != nil {
		return nil, err
	}
	s := session.JSON(ctx, session.DefaultTimeout)
	req := &Request{}
	if err := s.Receive(req); err != nil {
		return nil, perrors.WithMessage(err, "failed receiving notarisation request")
	}

	res := &Response{}
	res.Signature, err = service.Notarise(ctx.Context(), req.Tx)
	if err != nil {
		var conflict *ConflictError
		switch {
		case perrors.As(err, &conflict):
			res.Conflict = conflict
		case errors.HasCause(err, ErrMissingSignatures):
			res.Missing = true
			res.Error = err.Error()
		default:
			res.Error = err.Error()
		}
	}
	if err := s.Send(res); err != nil {
		return nil, perrors.WithMessage(err, "failed sending notarisation response")
	}
	return res.Signature, nil
}

// Client obtains notary signatures for the transactions finalized by this node.
// Requests that get no answer are sent again, notarisation being idempotent per transaction.
type Client struct {
	verifierProvider ledger.VerifierProvider
	timeout          time.Duration
	attempts         int
	delay            time.Duration
}

func NewClient(verifierProvider ledger.VerifierProvider, timeout time.Duration) *Client {
	return &Client{verifierProvider: verifierProvider, timeout: timeout, attempts: 3, delay: 50 * time.Millisecond}
}

func GetClient(sp view.ServiceProvider) (*Client, error) {
	s, err := sp.GetService(reflect.TypeOf((*Client)(nil)))
	if err != nil {
		return nil, perrors.Wrap(err, "cannot get notary client")
	}
	return s.(*Client), nil
}

// Finalize sends a fully signed transaction to its notary and attaches the notary signature
func (c *Client) Finalize(ctx view.Context, stx *ledger.SignedTransaction) (*ledger.SignedTransaction, error) {
	if stx.Tx.Notary.IsNone() {
		return nil, ErrNoNotary
	}
	var res interface{}
	err := utils.NewRetryRunner(c.attempts, c.delay, true).RunWithErrors(func() (bool, error) {
		var err error
		res, err = ctx.RunView(NewRequestView(stx, c.timeout))
		if err != nil && !answered(err) {
			logger.Warnf("no answer from notary [%s] for [%s]: %s", stx.Tx.Notary, stx.ID(), err)
			return false, err
		}
		return true, err
	})
	if err != nil {
		return nil, err
	}
	stx.NotarySignature = res.(*ledger.Signature)
	if err := stx.VerifyNotarySignature(c.verifierProvider); err != nil {
		stx.NotarySignature = nil
		return nil, perrors.Wrapf(ErrInvalidNotarySignature, "%s", err)
	}
	return stx, nil
}

// answered tells whether err carries the decision of the notary
func answered(err error) bool {
	return errors.HasCause(err, ErrConflict) || errors.HasCause(err, ErrMissingSignatures) || errors.HasCause(err, ErrRefused)
}
