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

package autocrypt

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"

	"chatcrypt/pgpkey"
)

func testKey(t *testing.T, email string) *pgpkey.Key {
	t.Helper()
	e, err := openpgp.NewEntity("Test", "", email, nil)
	if err != nil {
		t.Fatal(err)
	}
	for name, ident := range e.Identities {
		if err := ident.SelfSignature.SignUserId(name, e.PrimaryKey, e.PrivateKey, nil); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := e.Serialize(&buf); err != nil {
		t.Fatal(err)
	}
	k, err := pgpkey.ParsePublicKey(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestParseBasic(t *testing.T) {
	k := testKey(t, "alice@b.org")
	raw, _ := k.PublicKeyBytes()
	value := "addr=alice@b.org; prefer-encrypt=mutual; keydata=" + base64.StdEncoding.EncodeToString(raw)

	h, err := Parse(value)
	if err != nil {
		t.Fatal(err)
	}
	if h.Addr != "alice@b.org" {
		t.Fatalf("addr: got %q", h.Addr)
	}
	if h.Prefer != Mutual {
		t.Fatal("expected Mutual preference")
	}
}

func TestParseMissingAddr(t *testing.T) {
	k := testKey(t, "bob@c.org")
	raw, _ := k.PublicKeyBytes()
	value := "prefer-encrypt=mutual; keydata=" + base64.StdEncoding.EncodeToString(raw)
	if _, err := Parse(value); err != ErrMissingAddr {
		t.Fatalf("expected ErrMissingAddr, got %v", err)
	}
}

func TestParseUnknownCriticalAttribute(t *testing.T) {
	value := "addr=a@b.org; type=99; keydata=AAAA"
	if _, err := Parse(value); err != ErrCriticalAttribute {
		t.Fatalf("expected ErrCriticalAttribute, got %v", err)
	}
}

func TestParseUnknownNonCriticalAttribute(t *testing.T) {
	k := testKey(t, "carol@d.org")
	raw, _ := k.PublicKeyBytes()
	value := "addr=carol@d.org; _random=ignored; keydata=" + base64.StdEncoding.EncodeToString(raw)
	h, err := Parse(value)
	if err != nil {
		t.Fatalf("non-critical attribute should be ignored, got %v", err)
	}
	if h.Addr != "carol@d.org" {
		t.Fatal("unexpected addr")
	}
}

func TestParseUnrecognisedPreferEncryptIsNoPreference(t *testing.T) {
	k := testKey(t, "dave@e.org")
	raw, _ := k.PublicKeyBytes()
	value := "addr=dave@e.org; prefer-encrypt=yes; keydata=" + base64.StdEncoding.EncodeToString(raw)
	h, err := Parse(value)
	if err != nil {
		t.Fatal(err)
	}
	if h.Prefer != NoPreference {
		t.Fatal("unrecognised prefer-encrypt value must map to NoPreference")
	}
}

func TestRoundTrip(t *testing.T) {
	k := testKey(t, "erin@f.org")
	h := &Header{Addr: "erin@f.org", Prefer: Mutual, Key: k}
	serialised := h.String()

	// simulate header folding whitespace the wire format tolerates
	folded := strings.ReplaceAll(serialised, "\r\n ", "\r\n\t")

	parsed, err := Parse(folded)
	if err != nil {
		t.Fatalf("parse of serialised header failed: %v", err)
	}
	if parsed.Addr != h.Addr || parsed.Prefer != h.Prefer {
		t.Fatal("round trip mismatch")
	}
	if !parsed.Key.Fingerprint().Equal(h.Key.Fingerprint()) {
		t.Fatal("round trip key fingerprint mismatch")
	}
}

func TestSerialiseWrapsLongLines(t *testing.T) {
	k := testKey(t, "frank@g.org")
	h := &Header{Addr: "frank@g.org", Key: k}
	for _, line := range strings.Split(h.String(), "\r\n") {
		if len(line) > lineWidth+1 { // +1 for the folding leading space
			t.Fatalf("line exceeds %d chars: %d", lineWidth, len(line))
		}
	}
}
