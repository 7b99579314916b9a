/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

// Base64 logs lazily a byte array in base64 format
func Base64(b []byte) fmt.Stringer {
	return base64Enc(b)
}

type base64Enc []byte

func (b base64Enc) String() string {
	return base64.StdEncoding.EncodeToString(b)
}

// Eval defers the evaluation of f until the log entry is encoded
func Eval[V any](f func() V) fmt.Stringer {
	return eval[V](f)
}

type eval[V any] func() V

func (e eval[V]) String() string {
	return fmt.Sprintf("%v", e())
}

// SHA256Base64 logs lazily the base64 encoded sha256 digest of a byte array
func SHA256Base64(b []byte) fmt.Stringer {
	return eval[string](func() string {
		h := sha256.Sum256(b)
		return base64.StdEncoding.EncodeToString(h[:])
	})
}
