// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package appmodel

import (
	"golang.org/x/text/encoding/unicode"
)

// DecodeUTF16LocalName decodes a NUL-terminated little-endian UTF-16
// byte run into a Go string. Locals-at-entry debug tables and nest-member
// display names in some input container formats store names this way.
func DecodeUTF16LocalName(b []byte) (string, error) {
	n := len(b)
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			n = i
			break
		}
	}
	if n == 0 {
		return "", nil
	}
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	s, err := decoder.Bytes(b[:n])
	if err != nil {
		return "", err
	}
	return string(s), nil
}
