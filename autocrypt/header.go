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

// Package autocrypt parses and serialises the "Autocrypt:" and
// "Autocrypt-Gossip:" email headers: a set of semicolon-separated
// key=value attributes carrying a peer's address, key material and
// encryption preference.
package autocrypt

import (
	"encoding/base64"
	"errors"
	"strings"

	"chatcrypt/pgpkey"
)

// Preference is the sender's advertised encryption preference.
type Preference int

const (
	NoPreference Preference = iota
	Mutual
	Reset
)

func (p Preference) String() string {
	switch p {
	case Mutual:
		return "mutual"
	case Reset:
		return "reset"
	default:
		return ""
	}
}

// Error codes
var (
	ErrMissingAddr       = errors.New("autocrypt: missing addr attribute")
	ErrMissingKeydata    = errors.New("autocrypt: missing keydata attribute")
	ErrBadKeydata        = errors.New("autocrypt: keydata does not decode to a valid key")
	ErrCriticalAttribute = errors.New("autocrypt: unrecognised critical attribute")
)

// Header is a parsed Autocrypt or Autocrypt-Gossip header value.
type Header struct {
	Addr   string
	Prefer Preference
	Key    *pgpkey.Key
}

// knownAttrs are the attributes this parser understands. Any other
// attribute whose name does not start with "_" is critical and invalidates
// the header.
var knownAttrs = map[string]bool{
	"addr":           true,
	"prefer-encrypt": true,
	"keydata":        true,
}

// Parse parses the value of an Autocrypt (or Autocrypt-Gossip) header.
func Parse(value string) (*Header, error) {
	attrs := make(map[string]string)
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := ""
		if len(kv) == 2 {
			val = strings.TrimSpace(kv[1])
		}
		if !knownAttrs[key] && !strings.HasPrefix(key, "_") {
			return nil, ErrCriticalAttribute
		}
		attrs[key] = val
	}

	addr, ok := attrs["addr"]
	if !ok || addr == "" {
		return nil, ErrMissingAddr
	}

	keydataRaw, ok := attrs["keydata"]
	if !ok || keydataRaw == "" {
		return nil, ErrMissingKeydata
	}
	keydata, err := decodeBase64Loose(keydataRaw)
	if err != nil {
		return nil, ErrBadKeydata
	}
	key, err := pgpkey.FromPublicKeyBytes(keydata)
	if err != nil {
		return nil, ErrBadKeydata
	}

	pref := NoPreference
	switch strings.ToLower(attrs["prefer-encrypt"]) {
	case "mutual":
		pref = Mutual
	case "reset":
		pref = Reset
	}

	return &Header{
		Addr:   strings.ToLower(addr),
		Prefer: pref,
		Key:    key,
	}, nil
}

// decodeBase64Loose decodes base64 tolerating embedded whitespace and
// newlines (as produced by folded email headers).
func decodeBase64Loose(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		default:
			return r
		}
	}, s)
	return base64.StdEncoding.DecodeString(clean)
}

// lineWidth is the maximum unfolded line length the serialiser wraps to.
const lineWidth = 78

// String serialises the header back into "addr=…; prefer-encrypt=…;
// keydata=…" form, wrapping the base64 keydata body so lines do not exceed
// lineWidth characters (the wrapping is whitespace a downstream line-folder
// can use; it carries no semantic meaning and is stripped on parse).
func (h *Header) String() string {
	var b strings.Builder
	b.WriteString("addr=")
	b.WriteString(h.Addr)
	b.WriteString("; ")
	if h.Prefer != NoPreference {
		b.WriteString("prefer-encrypt=")
		b.WriteString(h.Prefer.String())
		b.WriteString("; ")
	}
	b.WriteString("keydata=")
	raw, err := h.Key.PublicKeyBytes()
	if err != nil {
		// Keys admitted into a Header always serialise; a failure here
		// means the key was never actually verified.
		panic(err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	b.WriteString(foldBase64(encoded, b.Len()))
	return b.String()
}

// foldBase64 inserts "\r\n " into s, which starts at column col of the
// header value, so that no line of the value (the leading folding space
// included) is longer than lineWidth.
func foldBase64(s string, col int) string {
	var b strings.Builder
	room := lineWidth - col
	for len(s) > room {
		if room > 0 {
			b.WriteString(s[:room])
			s = s[room:]
		}
		b.WriteString("\r\n ")
		room = lineWidth - 1
	}
	b.WriteString(s)
	return b.String()
}
