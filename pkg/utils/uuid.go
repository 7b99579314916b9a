/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package utils

import (
	"github.com/google/uuid"
)

func init() {
	uuid.EnableRandPool()
}

// GenerateUUID returns a random (version 4) UUID in its canonical form.
// Context, session and linear ids are all drawn from here.
func GenerateUUID() string {
	return uuid.NewString()
}

// IsUUID tells whether s is a UUID in any of the forms uuid.Parse accepts
func IsUUID(s string) bool {
	return uuid.Validate(s) == nil
}
