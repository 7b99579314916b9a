/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endorser

import (
	"fmt"

	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/identity"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracker"
	"github.com/pkg/errors"
)

// Kind tags the messages exchanged during an agreement
type Kind string

const (
	Swap       Kind = "swap"
	Sync       Kind = "sync"
	Proposal   Kind = "proposal"
	Signatures Kind = "signatures"
	Final      Kind = "final"
	Ack        Kind = "ack"
	Abort      Kind = "abort"
)

// Envelope is the only message type sent over an agreement session
type Envelope struct {
	Kind         Kind                      `json:"kind"`
	Intent       string                    `json:"intent,omitempty"`
	Certificates []*identity.Certificate   `json:"certificates,omitempty"`
	Transaction  *ledger.SignedTransaction `json:"transaction,omitempty"`
	Signatures   []ledger.Signature        `json:"signatures,omitempty"`
	Reason       string                    `json:"reason,omitempty"`
}

// Initiator steps
const (
	Preparing   tracker.Step = "PREPARING"
	Authorizing tracker.Step = "AUTHORIZING"
	Building    tracker.Step = "BUILDING"
	Signing     tracker.Step = "SIGNING"
	Syncing     tracker.Step = "SYNCING"
	Collecting  tracker.Step = "COLLECTING"
	Finalizing  tracker.Step = "FINALIZING"
)

// Responder steps
const (
	SyncReceive tracker.Step = "SYNC_RECEIVE"
	Review      tracker.Step = "REVIEW"
	Endorse     tracker.Step = "ENDORSE"
	AwaitCommit tracker.Step = "AWAIT_COMMIT"
)

var (
	InitiatorPlan = []tracker.Step{Preparing, Authorizing, Building, Signing, Syncing, Collecting, Finalizing}
	ResponderPlan = []tracker.Step{SyncReceive, Review, Endorse, AwaitCommit}
)

var (
	// ErrUnexpectedMessage is returned when an envelope of the wrong kind arrives
	ErrUnexpectedMessage = errors.New("unexpected message")
	// ErrNotASigner is returned by a responder asked to sign a transaction none of its keys is required for
	ErrNotASigner = errors.New("not a required signer")
	// ErrInconsistentInput is returned when an input differs from the unconsumed state in the vault
	ErrInconsistentInput = errors.New("input is not the current unconsumed state")
	// ErrInitiatorSignature is returned when the initiator did not sign its own proposal
	ErrInitiatorSignature = errors.New("proposal not signed by the initiator")
	// ErrAborted is returned by responders told by the initiator that the agreement failed
	ErrAborted = errors.New("agreement aborted by the initiator")
)

// CounterpartyRejection is the reason a counterparty declined to endorse
type CounterpartyRejection struct {
	Party  states.Party
	Reason string
}

func (r *CounterpartyRejection) Error() string {
	return fmt.Sprintf("rejected by [%s]: %s", r.Party, r.Reason)
}

// AbortError is the single outcome of a failed agreement attempt
type AbortError struct {
	Step  tracker.Step
	Cause error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("aborted at [%s]: %s", e.Step, e.Cause)
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}
