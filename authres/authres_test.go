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

package authres

import "testing"

func TestEvaluatePass(t *testing.T) {
	headers := []string{
		`mx.b.org; dkim=pass header.d=b.org header.i=@b.org`,
	}
	v := Evaluate(headers, "b.org")
	if !v["mx.b.org"] {
		t.Fatalf("expected dkim pass for mx.b.org, got %v", v)
	}
}

func TestEvaluateFailWrongDomain(t *testing.T) {
	headers := []string{
		`mx.b.org; dkim=pass header.d=evil.org header.i=@evil.org`,
	}
	v := Evaluate(headers, "b.org")
	if v["mx.b.org"] {
		t.Fatal("dkim pass for a different domain must not count as pass")
	}
}

func TestEvaluateFirstHeaderWins(t *testing.T) {
	headers := []string{
		`mx.b.org; dkim=fail`,
		`mx.b.org; dkim=pass header.d=b.org`,
	}
	v := Evaluate(headers, "b.org")
	if v["mx.b.org"] {
		t.Fatal("first (prepended) header must win, expected fail")
	}
}

func TestAuthservIDWhitespaceSubstitution(t *testing.T) {
	headers := []string{
		"mx.b.org 1; dkim=pass header.d=b.org",
	}
	v := Evaluate(headers, "b.org")
	if _, ok := v["mx.b.org 1"]; ok {
		t.Fatal("authserv-id with whitespace must not be used verbatim")
	}
	if !v[invalidAuthservID] {
		t.Fatalf("expected %s entry, got %v", invalidAuthservID, v)
	}
}

func TestCandidatesLearnSeedsFromEmpty(t *testing.T) {
	var c Candidates
	c = c.Learn(Verdicts{"mx.b.org": true})
	if len(c) != 1 || c[0] != "mx.b.org" {
		t.Fatalf("expected candidate set seeded with mx.b.org, got %v", c)
	}
}

func TestCandidatesLearnIntersects(t *testing.T) {
	c := Candidates{"mx.b.org", "mx2.b.org"}
	c = c.Learn(Verdicts{"mx.b.org": false})
	if len(c) != 1 || c[0] != "mx.b.org" {
		t.Fatalf("expected intersection to keep only mx.b.org, got %v", c)
	}
}

func TestCandidatesLearnEmptyObservationNoOp(t *testing.T) {
	c := Candidates{"mx.b.org"}
	c2 := c.Learn(Verdicts{})
	if len(c2) != 1 || c2[0] != "mx.b.org" {
		t.Fatal("empty results map must not change the candidate set")
	}
}

func TestDKIMTrustedEmptyResultsIsTrusted(t *testing.T) {
	if !DKIMTrusted(Verdicts{}, Candidates{"mx.b.org"}) {
		t.Fatal("absence of results must be treated as trusted")
	}
}

func TestDKIMTrustedRequiresCandidatePass(t *testing.T) {
	v := Verdicts{"mx.other.org": true}
	if DKIMTrusted(v, Candidates{"mx.b.org"}) {
		t.Fatal("a pass under a non-candidate id must not count")
	}
}

func TestCandidatesRoundTrip(t *testing.T) {
	c := Candidates{"mx.b.org", "mx2.b.org"}
	again := ParseCandidates(c.String())
	if len(again) != 2 {
		t.Fatalf("round trip mismatch: %v", again)
	}
}
