/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import "strings"

// Join builds a dotted key out of its segments, for example Join("iou", "web", "address").
// Dots and blanks around a segment are dropped, as are empty segments.
func Join(segments ...string) string {
	key := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.Trim(s, ". "); len(s) != 0 {
			key = append(key, s)
		}
	}
	return strings.Join(key, ".")
}
