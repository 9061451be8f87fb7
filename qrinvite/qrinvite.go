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

// Package qrinvite parses the "OPENPGP4FPR:" QR-code payload used to bootstrap
// a Secure-Join handshake into a typed Contact or Group invite.
package qrinvite

import (
	"errors"
	"net/url"
	"strings"

	"chatcrypt/fingerprint"
)

// scheme is the case-insensitive QR payload prefix.
const scheme = "OPENPGP4FPR:"

// Error codes
var (
	ErrNoScheme        = errors.New("qrinvite: missing OPENPGP4FPR scheme")
	ErrNoFragment      = errors.New("qrinvite: missing '#' fragment separator")
	ErrBadFingerprint  = errors.New("qrinvite: fingerprint does not normalise to 40 hex chars")
	ErrMissingInvite   = errors.New("qrinvite: missing invitenumber (i=)")
	ErrMissingAuth     = errors.New("qrinvite: missing auth code (s=)")
	ErrMissingGroupID  = errors.New("qrinvite: group variant missing grpid (x=)")
	ErrMalformedAttr   = errors.New("qrinvite: malformed k=v attribute")
)

// Variant distinguishes the two Secure-Join invite shapes.
type Variant int

const (
	Contact Variant = iota
	Group
)

// QrInvite is the parsed "OPENPGP4FPR:" payload: a tagged union keyed by
// Variant. ContactID is left zero; it is resolved by the caller against the
// local contact table, not by this package.
type QrInvite struct {
	Variant      Variant
	Fingerprint  fingerprint.Fingerprint
	Addr         string // "a" — always present once resolved by caller input
	Name         string // "n" — contact variant display name
	GroupName    string // "g" — group variant
	GroupID      string // "x" — group variant, presence selects Variant==Group
	InviteNumber string // "i"
	Auth         string // "s"
}

// Parse parses an "OPENPGP4FPR:<fp>#<k=v&...>" QR payload.
func Parse(payload string) (*QrInvite, error) {
	if len(payload) < len(scheme) || !strings.EqualFold(payload[:len(scheme)], scheme) {
		return nil, ErrNoScheme
	}
	rest := payload[len(scheme):]

	fpPart, fragPart, ok := strings.Cut(rest, "#")
	if !ok {
		return nil, ErrNoFragment
	}

	fp, err := fingerprint.Parse(fpPart)
	if err != nil {
		return nil, ErrBadFingerprint
	}

	attrs, err := parseFragment(fragPart)
	if err != nil {
		return nil, err
	}

	inv := &QrInvite{
		Fingerprint:  fp,
		Addr:         attrs["a"],
		InviteNumber: attrs["i"],
		Auth:         attrs["s"],
	}
	if inv.InviteNumber == "" {
		return nil, ErrMissingInvite
	}
	if inv.Auth == "" {
		return nil, ErrMissingAuth
	}

	if grpid, isGroup := attrs["x"]; isGroup {
		if grpid == "" {
			return nil, ErrMissingGroupID
		}
		inv.Variant = Group
		inv.GroupID = grpid
		inv.GroupName = plusAsSpace(attrs["g"])
	} else {
		inv.Variant = Contact
		inv.Name = plusAsSpace(attrs["n"])
	}

	return inv, nil
}

// parseFragment splits the "&"-joined k=v attribute list. Values are
// percent-decoded with percentDecode, which leaves '+' literal; Parse then
// applies plusAsSpace to the n and g fields only.
func parseFragment(frag string) (map[string]string, error) {
	attrs := make(map[string]string)
	if frag == "" {
		return attrs, nil
	}
	for _, part := range strings.Split(frag, "&") {
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, ErrMalformedAttr
		}
		decoded, err := percentDecode(val)
		if err != nil {
			return nil, ErrMalformedAttr
		}
		attrs[strings.ToLower(key)] = decoded
	}
	return attrs, nil
}

// percentDecode decodes %XX escapes without touching '+' (the QR grammar
// only treats '+' as space inside the n/g fields, handled separately by
// plusAsSpace).
func percentDecode(s string) (string, error) {
	// url.PathUnescape leaves '+' untouched, unlike url.QueryUnescape.
	return url.PathUnescape(s)
}

// plusAsSpace maps literal '+' to space, the rule the QR grammar applies
// only to the "n" and "g" fragment fields.
func plusAsSpace(s string) string {
	return strings.ReplaceAll(s, "+", " ")
}

// String re-serialises the invite back into "OPENPGP4FPR:<fp>#<k=v&...>"
// form, the form a QR-code renderer (out of scope here) encodes.
func (q *QrInvite) String() string {
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString(q.Fingerprint.String())
	b.WriteByte('#')

	write := func(first *bool, key, val string) {
		if val == "" {
			return
		}
		if !*first {
			b.WriteByte('&')
		}
		*first = false
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(percentEncode(val))
	}

	first := true
	write(&first, "a", q.Addr)
	switch q.Variant {
	case Group:
		write(&first, "g", q.GroupName)
		write(&first, "x", q.GroupID)
	default:
		write(&first, "n", q.Name)
	}
	write(&first, "i", q.InviteNumber)
	write(&first, "s", q.Auth)
	return b.String()
}

func percentEncode(s string) string {
	return url.PathEscape(s)
}
