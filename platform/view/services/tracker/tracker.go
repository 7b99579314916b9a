/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tracker

import (
	"reflect"
	"sync"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("view.tracker")

const progressPrefix = "tracker.progress"

type Role string

const (
	Initiator Role = "initiator"
	Responder Role = "responder"
)

// Step is a checkpoint of a protocol instance
type Step string

const (
	Committed Step = "COMMITTED"
	Aborted   Step = "ABORTED"
)

// ErrInvalidTransition is returned when a step is reported out of order
var ErrInvalidTransition = errors.New("invalid step transition")

// Progress is the serializable checkpoint of a protocol instance
type Progress struct {
	FlowID    string    `json:"flow_id"`
	Role      Role      `json:"role"`
	Intent    string    `json:"intent"`
	Step      Step      `json:"step"`
	History   []Step    `json:"history,omitempty"`
	LinearID  string    `json:"linear_id,omitempty"`
	TxID      string    `json:"tx_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Progress) Terminal() bool {
	return p.Step == Committed || p.Step == Aborted
}

// Store persists checkpoints
type Store interface {
	Put(id string, state interface{}) error
	Get(id string, state interface{}) error
	GetByPartialCompositeID(prefix string, attrs []string) (kvs.Iterator, error)
}

// Service creates trackers and gives access to their checkpoints
type Service struct {
	store   Store
	metrics *Metrics
}

func NewService(store Store, metricsProvider metrics.Provider) *Service {
	return &Service{store: store, metrics: newMetrics(metricsProvider)}
}

// GetService returns the tracker service registered in sp
func GetService(sp view.ServiceProvider) (*Service, error) {
	s, err := sp.GetService(reflect.TypeOf((*Service)(nil)))
	if err != nil {
		return nil, errors.Wrap(err, "cannot get tracker service")
	}
	return s.(*Service), nil
}

// New returns a tracker that accepts the steps of plan in order.
// Steps may be skipped, never revisited. Committed and Aborted are always allowed as last steps.
func (s *Service) New(flowID string, role Role, intent string, plan ...Step) *Tracker {
	return &Tracker{
		store:   s.store,
		metrics: s.metrics,
		plan:    plan,
		current: -1,
		progress: Progress{
			FlowID: flowID,
			Role:   role,
			Intent: intent,
		},
	}
}

// Progress returns the last checkpoint of the passed protocol instance
func (s *Service) Progress(flowID string, role Role) (*Progress, error) {
	p := &Progress{}
	if err := s.store.Get(progressKey(flowID, role), p); err != nil {
		return nil, errors.WithMessagef(err, "failed loading progress of [%s:%s]", flowID, role)
	}
	return p, nil
}

// All returns the checkpoints of every tracked protocol instance
func (s *Service) All() ([]*Progress, error) {
	it, err := s.store.GetByPartialCompositeID(progressPrefix, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	var res []*Progress
	for it.HasNext() {
		p := &Progress{}
		if _, err := it.Next(p); err != nil {
			return nil, errors.Wrap(err, "failed reading progress")
		}
		res = append(res, p)
	}
	return res, nil
}

// Tracker records the steps of one protocol instance
type Tracker struct {
	store   Store
	metrics *Metrics
	plan    []Step

	mutex    sync.Mutex
	current  int
	progress Progress
}

// Advance moves the tracker to step and checkpoints it
func (t *Tracker) Advance(step Step) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.progress.Terminal() {
		return errors.Wrapf(ErrInvalidTransition, "[%s] already terminated with [%s], cannot move to [%s]", t.progress.FlowID, t.progress.Step, step)
	}
	if step == Committed || step == Aborted {
		return t.move(step, len(t.plan))
	}
	next := -1
	for i := t.current + 1; i < len(t.plan); i++ {
		if t.plan[i] == step {
			next = i
			break
		}
	}
	if next == -1 {
		return errors.Wrapf(ErrInvalidTransition, "[%s] cannot move from [%s] to [%s]", t.progress.FlowID, t.progress.Step, step)
	}
	return t.move(step, next)
}

// Commit terminates the protocol instance successfully
func (t *Tracker) Commit() error {
	return t.Advance(Committed)
}

// Abort terminates the protocol instance recording the reason.
// It is a no-op on terminated trackers.
func (t *Tracker) Abort(reason error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.progress.Terminal() {
		return
	}
	if reason != nil {
		t.progress.Reason = reason.Error()
	}
	if err := t.move(Aborted, len(t.plan)); err != nil {
		logger.Errorf("failed recording abort of [%s]: %s", t.progress.FlowID, err)
	}
}

func (t *Tracker) SetLinearID(id string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.progress.LinearID = id
}

func (t *Tracker) SetTxID(id string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.progress.TxID = id
}

// Step returns the current step, empty before the first one
func (t *Tracker) Step() Step {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.progress.Step
}

// Progress returns a copy of the current checkpoint
func (t *Tracker) Progress() Progress {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	p := t.progress
	p.History = append([]Step(nil), t.progress.History...)
	return p
}

func (t *Tracker) move(step Step, index int) error {
	if len(t.progress.History) == 0 {
		t.metrics.Started.With(IntentLabel, t.progress.Intent, RoleLabel, string(t.progress.Role)).Add(1)
	}
	t.current = index
	t.progress.Step = step
	t.progress.History = append(t.progress.History, step)
	t.progress.UpdatedAt = time.Now()

	switch step {
	case Committed:
		t.metrics.Committed.With(IntentLabel, t.progress.Intent, RoleLabel, string(t.progress.Role)).Add(1)
	case Aborted:
		t.metrics.Aborted.With(IntentLabel, t.progress.Intent, RoleLabel, string(t.progress.Role)).Add(1)
	}
	if logger.IsEnabledFor(logging.DebugLevel) {
		logger.Debugf("[%s:%s:%s] step [%s]", t.progress.Role, t.progress.Intent, t.progress.FlowID, step)
	}
	if err := t.store.Put(progressKey(t.progress.FlowID, t.progress.Role), &t.progress); err != nil {
		return errors.WithMessagef(err, "failed checkpointing [%s] at [%s]", t.progress.FlowID, step)
	}
	return nil
}

func progressKey(flowID string, role Role) string {
	return kvs.CreateCompositeKeyOrPanic(progressPrefix, []string{flowID, string(role)})
}
