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

// Package authres evaluates "Authentication-Results:" headers (RFC 8601,
// parsed with emersion/go-msgauth) into a per-authserv-id DKIM verdict, and
// provides the anti-rollback gate the inbound trust gate consults before
// letting a message mutate a peer's Autocrypt key.
package authres

import (
	"strings"

	"github.com/emersion/go-msgauth/authres"
)

// invalidAuthservID substitutes for an authserv-id that violates RFC 8601
// by containing whitespace (some providers append a version token).
const invalidAuthservID = "invalidAuthservId"

// Verdicts maps authserv-id -> whether DKIM was reported to pass for that
// provider, for a single message.
type Verdicts map[string]bool

// Evaluate classifies every "Authentication-Results:" header value found on
// a message against fromDomain, the domain of the message's From: address.
// Per RFC 8601 MUA convention, headers are prepended by each hop, so when
// more than one header names the same authserv-id the first one in
// headerValues decides.
func Evaluate(headerValues []string, fromDomain string) Verdicts {
	out := make(Verdicts)
	fromDomain = strings.ToLower(fromDomain)
	for _, raw := range headerValues {
		id, passed, ok := evaluateOne(raw, fromDomain)
		if !ok {
			continue
		}
		if _, seen := out[id]; seen {
			continue // first header for this id wins
		}
		out[id] = passed
	}
	return out
}

// evaluateOne parses a single header value, returning its authserv-id and
// whether it reported a DKIM pass for fromDomain. ok is false if the header
// value itself could not be parsed at all.
func evaluateOne(raw string, fromDomain string) (id string, passed bool, ok bool) {
	id = authservID(raw)

	_, results, err := authres.Parse(raw)
	if err != nil {
		// The identifier was still extractable even if the resinfo list
		// wasn't; an unparsable resinfo list carries no dkim=pass, so it
		// counts as a fail for this id, same as "anything else".
		return id, false, true
	}

	for _, res := range results {
		dkim, isDKIM := res.(*authres.DKIMResult)
		if !isDKIM {
			continue
		}
		if dkim.Value != authres.ResultPass {
			continue
		}
		if strings.EqualFold(dkim.Domain, fromDomain) || strings.EqualFold(dkim.Identifier, "@"+fromDomain) {
			return id, true, true
		}
	}
	return id, false, true
}

// authservID extracts the token before the first ';', the identifier per
// §4.4, lowercased so candidate-set intersection (Candidates.Learn) is
// case-insensitive. A token containing whitespace violates RFC 8601;
// substitute the synthetic id so a malformed provider can never collide
// with a real one.
func authservID(raw string) string {
	head, _, _ := strings.Cut(raw, ";")
	head = strings.TrimSpace(head)
	if strings.ContainsAny(head, " \t") {
		return invalidAuthservID
	}
	return strings.ToLower(head)
}

// DKIMTrusted reports whether a message is DKIM-trusted given the
// candidate authserv-id set: trusted if any candidate id reports a pass,
// or if the results map is empty (a provider that doesn't stamp results at
// all can't be used by an attacker to forge a failing verdict, so absence
// of evidence is not evidence of forgery).
func DKIMTrusted(v Verdicts, candidates Candidates) bool {
	if len(v) == 0 {
		return true
	}
	for _, id := range candidates {
		if passed, ok := v[id]; ok && passed {
			return true
		}
	}
	return false
}
