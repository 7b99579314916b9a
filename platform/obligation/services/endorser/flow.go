/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endorser

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracker"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
)

// Flow runs the steps of an initiator in order and checkpoints each of them.
// The first failing step aborts the flow.
type Flow struct {
	tracker *tracker.Tracker
}

func NewFlow(ctx view.Context, intent string) (*Flow, error) {
	ts, err := tracker.GetService(ctx)
	if err != nil {
		return nil, err
	}
	return &Flow{tracker: ts.New(ctx.ID(), tracker.Initiator, intent, InitiatorPlan...)}, nil
}

// Do moves to step and runs f. Any failure is returned as an *AbortError.
func (f *Flow) Do(step tracker.Step, do func() error) error {
	if err := f.tracker.Advance(step); err != nil {
		return f.abort(step, err)
	}
	if err := do(); err != nil {
		return f.abort(step, err)
	}
	return nil
}

// Commit terminates the flow with the final transaction
func (f *Flow) Commit(stx *ledger.SignedTransaction) error {
	f.tracker.SetTxID(stx.ID())
	if err := f.tracker.Commit(); err != nil {
		return f.abort(f.tracker.Step(), err)
	}
	return nil
}

func (f *Flow) SetLinearID(id string) {
	f.tracker.SetLinearID(id)
}

func (f *Flow) Progress() tracker.Progress {
	return f.tracker.Progress()
}

func (f *Flow) abort(step tracker.Step, err error) error {
	p := f.tracker.Progress()
	logger.Warnf("[%s:%s] aborted at [%s]: %s", p.Intent, p.FlowID, step, err)
	f.tracker.Abort(err)
	return &AbortError{Step: step, Cause: err}
}
