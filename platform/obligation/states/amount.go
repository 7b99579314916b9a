/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package states

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of every quantity: 100 is 1.00
const Decimals = 2

var (
	ErrTokenMismatch = errors.New("token mismatch")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrOverflow      = errors.New("amount overflow")
)

// Amount is a fixed-point quantity in minor units tagged with a currency code
type Amount struct {
	Quantity int64  `json:"quantity"`
	Token    string `json:"token"`
}

func NewAmount(quantity int64, token string) Amount {
	return Amount{Quantity: quantity, Token: token}
}

func ZeroOf(token string) Amount {
	return Amount{Token: token}
}

// ParseAmount parses strings like "1000.50 GBP"
func ParseAmount(s string) (Amount, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Amount{}, errors.Wrapf(ErrInvalidAmount, "expected '<quantity> <token>', got [%s]", s)
	}
	d, err := decimal.NewFromString(fields[0])
	if err != nil {
		return Amount{}, errors.Wrapf(ErrInvalidAmount, "invalid quantity [%s]: %s", fields[0], err)
	}
	return AmountFromDecimal(d, fields[1])
}

// AmountFromDecimal converts a human quantity into minor units, rejecting more than Decimals fractional digits
func AmountFromDecimal(d decimal.Decimal, token string) (Amount, error) {
	if len(token) == 0 {
		return Amount{}, errors.Wrap(ErrInvalidAmount, "missing token")
	}
	minor := d.Shift(Decimals)
	if !minor.Equal(minor.Truncate(0)) {
		return Amount{}, errors.Wrapf(ErrInvalidAmount, "[%s] has more than %d decimal places", d, Decimals)
	}
	if minor.Abs().GreaterThan(decimal.NewFromInt(1<<62)) {
		return Amount{}, errors.Wrapf(ErrInvalidAmount, "[%s] out of range", d)
	}
	return Amount{Quantity: minor.IntPart(), Token: token}, nil
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(a.Quantity, -Decimals)
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Decimal().StringFixed(Decimals), a.Token)
}

func (a Amount) IsZero() bool {
	return a.Quantity == 0
}

func (a Amount) IsPositive() bool {
	return a.Quantity > 0
}

func (a Amount) IsNegative() bool {
	return a.Quantity < 0
}

func (a Amount) Plus(b Amount) (Amount, error) {
	if err := a.checkToken(b); err != nil {
		return Amount{}, err
	}
	q := a.Quantity + b.Quantity
	if (b.Quantity > 0 && q < a.Quantity) || (b.Quantity < 0 && q > a.Quantity) {
		return Amount{}, errors.Wrapf(ErrOverflow, "[%s] + [%s]", a, b)
	}
	return Amount{Quantity: q, Token: a.Token}, nil
}

func (a Amount) Minus(b Amount) (Amount, error) {
	if err := a.checkToken(b); err != nil {
		return Amount{}, err
	}
	q := a.Quantity - b.Quantity
	if (b.Quantity > 0 && q > a.Quantity) || (b.Quantity < 0 && q < a.Quantity) {
		return Amount{}, errors.Wrapf(ErrOverflow, "[%s] - [%s]", a, b)
	}
	return Amount{Quantity: q, Token: a.Token}, nil
}

// Cmp returns -1, 0 or +1 as a is less than, equal to or greater than b
func (a Amount) Cmp(b Amount) (int, error) {
	if err := a.checkToken(b); err != nil {
		return 0, err
	}
	switch {
	case a.Quantity < b.Quantity:
		return -1, nil
	case a.Quantity > b.Quantity:
		return 1, nil
	}
	return 0, nil
}

func (a Amount) checkToken(b Amount) error {
	if a.Token != b.Token {
		return errors.Wrapf(ErrTokenMismatch, "[%s] vs [%s]", a.Token, b.Token)
	}
	return nil
}

// Sum adds amounts of the passed token, failing on any other token
func Sum(token string, amounts ...Amount) (Amount, error) {
	total := ZeroOf(token)
	for _, a := range amounts {
		var err error
		if total, err = total.Plus(a); err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}
