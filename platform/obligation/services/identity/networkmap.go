/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"sort"
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when no party is known under a name or identity
var ErrNotFound = errors.New("party not found")

type entry struct {
	party  states.Party
	notary bool
}

// NetworkMap lists the well-known parties of the network and the notaries among them.
// Entries are indexed by name and by identity.
type NetworkMap struct {
	mutex   sync.RWMutex
	entries []*entry
	index   map[string]*entry
}

func NewNetworkMap() *NetworkMap {
	return &NetworkMap{index: map[string]*entry{}}
}

// AddParty registers a well-known party. Adding the same name twice with the same identity is a no-op.
func (n *NetworkMap) AddParty(p states.Party) error {
	return n.add(p, false)
}

// AddNotary registers a well-known party offering the notary service
func (n *NetworkMap) AddNotary(p states.Party) error {
	return n.add(p, true)
}

func (n *NetworkMap) add(p states.Party, notary bool) error {
	if p.IsAnonymous() || p.IsNone() {
		return errors.Errorf("only well-known parties can join the network map, got [%s]", p)
	}
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if e, ok := n.index[p.Name]; ok {
		if !e.party.Equal(p) {
			return errors.Errorf("name [%s] already bound to another identity", p.Name)
		}
		e.notary = e.notary || notary
		return nil
	}
	if e, ok := n.index[string(p.Identity)]; ok {
		return errors.Errorf("identity of [%s] already bound to [%s]", p.Name, e.party.Name)
	}
	logger.Debugf("adding [%s] to the network map, notary [%v]", p.Name, notary)
	e := &entry{party: p, notary: notary}
	n.entries = append(n.entries, e)
	n.index[p.Name] = e
	n.index[string(p.Identity)] = e
	return nil
}

func (n *NetworkMap) PartyFromName(name string) (states.Party, error) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	if e, ok := n.index[name]; ok && e.party.Name == name {
		return e.party, nil
	}
	return states.Party{}, errors.Wrapf(ErrNotFound, "no party named [%s]", name)
}

func (n *NetworkMap) PartyFromIdentity(id view.Identity) (states.Party, error) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	if e, ok := n.index[string(id)]; ok && e.party.Identity.Equal(id) {
		return e.party, nil
	}
	return states.Party{}, errors.Wrapf(ErrNotFound, "no party with identity [%s]", id.UniqueID())
}

// Parties returns every party sorted by name
func (n *NetworkMap) Parties() []states.Party {
	return n.filter(func(*entry) bool { return true })
}

// Peers returns the parties other than me and other than the notaries
func (n *NetworkMap) Peers(me view.Identity) []states.Party {
	return n.filter(func(e *entry) bool { return !e.notary && !e.party.Identity.Equal(me) })
}

func (n *NetworkMap) Notaries() []states.Party {
	return n.filter(func(e *entry) bool { return e.notary })
}

func (n *NetworkMap) IsNotary(id view.Identity) bool {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	e, ok := n.index[string(id)]
	return ok && e.notary && e.party.Identity.Equal(id)
}

func (n *NetworkMap) filter(f func(*entry) bool) []states.Party {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	var res []states.Party
	for _, e := range n.entries {
		if f(e) {
			res = append(res, e.party)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}
