/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package states

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
)

// Party is either a well-known identity, carrying the name of its node,
// or a pseudonymous one-time key with no name.
// Two parties are the same when they own the same key.
type Party struct {
	Name     string        `json:"name,omitempty"`
	Identity view.Identity `json:"identity"`
}

func (p Party) IsAnonymous() bool {
	return len(p.Name) == 0
}

func (p Party) Equal(other Party) bool {
	return p.Identity.Equal(other.Identity)
}

func (p Party) IsNone() bool {
	return p.Identity.IsNone()
}

// Anonymise drops the name, keeping the owning key
func (p Party) Anonymise() Party {
	return Party{Identity: p.Identity}
}

func (p Party) String() string {
	if p.IsAnonymous() {
		id := p.Identity.UniqueID()
		if len(id) > 8 {
			id = id[:8]
		}
		return "anonymous(" + id + ")"
	}
	return p.Name
}

type Parties []Party

// Identities returns the owning keys of the parties, without duplicates
func (ps Parties) Identities() view.Identities {
	res := make(view.Identities, 0, len(ps))
	for _, p := range ps {
		res = append(res, p.Identity)
	}
	return res.Distinct()
}

func (ps Parties) Contains(p Party) bool {
	for _, q := range ps {
		if q.Equal(p) {
			return true
		}
	}
	return false
}
