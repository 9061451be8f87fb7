// This file is part of chatcrypt, a cryptographic trust and messaging
// protocol core for an email-transported end-to-end-encrypted chat client.
// Copyright (C) 2026
//
// chatcrypt is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// chatcrypt is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// Package fingerprint handles the canonical representation of OpenPGP v4
// fingerprints: 20-byte SHA-1 values identifying a key.
package fingerprint

import (
	"fmt"
	"strings"
)

// Size is the length of a fingerprint in bytes.
const Size = 20

// Error codes
var (
	ErrInvalidLength = fmt.Errorf("fingerprint: wrong length after normalisation")
)

// Fingerprint is a 20-byte OpenPGP v4 fingerprint. Equality is on the raw
// bytes; parsing is tolerant of whitespace, separators and case.
type Fingerprint [Size]byte

// Parse normalises a fingerprint string: every character outside [0-9A-F]
// is dropped after uppercasing, and the remainder must be exactly 40 hex
// digits. Accepts dense hex, space-grouped, colon-separated or any other
// mix of whitespace and case.
func Parse(s string) (fp Fingerprint, err error) {
	var hex strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') {
			hex.WriteRune(r)
		}
	}
	clean := hex.String()
	if len(clean) != 2*Size {
		err = ErrInvalidLength
		return
	}
	for i := 0; i < Size; i++ {
		var b int
		if _, e := fmt.Sscanf(clean[2*i:2*i+2], "%02X", &b); e != nil {
			err = e
			return
		}
		fp[i] = byte(b)
	}
	return
}

// MustParse is like Parse but panics on error; intended for fixed test data
// and compile-time-known constants.
func MustParse(s string) Fingerprint {
	fp, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return fp
}

// String returns the dense hex form used on the wire and in storage.
func (fp Fingerprint) String() string {
	var b strings.Builder
	b.Grow(2 * Size)
	for _, v := range fp {
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// DisplayBlocks returns the human display form: a space every 4 hex chars,
// a newline every 20 hex chars (5 groups of 4).
func (fp Fingerprint) DisplayBlocks() string {
	hex := fp.String()
	var b strings.Builder
	for i := 0; i < len(hex); i += 4 {
		if i > 0 {
			if i%20 == 0 {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(hex[i : i+4])
	}
	return b.String()
}

// IsZero reports whether fp is the all-zero value (the "no fingerprint" case).
func (fp Fingerprint) IsZero() bool {
	return fp == Fingerprint{}
}

// MarshalJSON encodes the fingerprint as its dense hex string, the form
// peerstate rows and the token store persist it in.
func (fp Fingerprint) MarshalJSON() ([]byte, error) {
	return []byte(`"` + fp.String() + `"`), nil
}

// UnmarshalJSON decodes a dense hex string back into a Fingerprint.
func (fp *Fingerprint) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*fp = Fingerprint{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*fp = parsed
	return nil
}

// Equal reports whether two fingerprints carry the same 20 bytes.
func (fp Fingerprint) Equal(other Fingerprint) bool {
	return fp == other
}
