/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package states

import "fmt"

// Cash is an owned quantity of currency issued by Issuer
type Cash struct {
	Amount Amount `json:"amount"`
	Issuer Party  `json:"issuer"`
	Owner  Party  `json:"owner"`
}

// WithoutIssuer returns the value of the cash ignoring its provenance
func (c Cash) WithoutIssuer() Amount {
	return c.Amount
}

func (c Cash) WithNewOwner(owner Party) Cash {
	c.Owner = owner
	return c
}

func (c Cash) Participants() Parties {
	return Parties{c.Owner}
}

func (c Cash) String() string {
	return fmt.Sprintf("Cash(%s issued by %s, owned by %s)", c.Amount, c.Issuer, c.Owner)
}
