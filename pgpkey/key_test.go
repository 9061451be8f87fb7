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

package pgpkey

import (
	"bytes"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// newTestEntity creates a throwaway OpenPGP entity for a test identity.
func newTestEntity(t *testing.T, name, email string) *openpgp.Entity {
	t.Helper()
	e, err := openpgp.NewEntity(name, "", email, nil)
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}
	for _, ident := range e.Identities {
		if err := ident.SelfSignature.SignUserId(ident.UserId.Id, e.PrimaryKey, e.PrivateKey, nil); err != nil {
			t.Fatalf("SignUserId: %v", err)
		}
	}
	return e
}

func armorEntity(t *testing.T, e *openpgp.Entity, secret bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	if secret {
		err = e.SerializePrivate(&buf, nil)
	} else {
		err = e.Serialize(&buf)
	}
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func TestParsePublicKey(t *testing.T) {
	e := newTestEntity(t, "Alice", "alice@b.org")
	raw := armorEntity(t, e, false)

	k, err := ParsePublicKey(raw)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if k.IsSecret() {
		t.Fatal("expected public key")
	}
	if k.Fingerprint().IsZero() {
		t.Fatal("expected non-zero fingerprint")
	}
}

func TestParseSecretKey(t *testing.T) {
	e := newTestEntity(t, "Bob", "bob@c.org")
	raw := armorEntity(t, e, true)

	k, err := ParseSecretKey(raw)
	if err != nil {
		t.Fatalf("ParseSecretKey: %v", err)
	}
	if !k.IsSecret() {
		t.Fatal("expected secret key")
	}
}

func TestKeyringRoundTrip(t *testing.T) {
	e := newTestEntity(t, "Carol", "carol@d.org")
	raw := armorEntity(t, e, false)
	k, err := ParsePublicKey(raw)
	if err != nil {
		t.Fatal(err)
	}

	kr := NewKeyring()
	kr.Add(k)
	if kr.Len() != 1 {
		t.Fatalf("expected 1 key, got %d", kr.Len())
	}
	got, ok := kr.Get(k.Fingerprint())
	if !ok || got != k {
		t.Fatal("keyring lookup failed")
	}
}

func TestArmorPublicRoundTrip(t *testing.T) {
	e := newTestEntity(t, "Dave", "dave@e.org")
	raw := armorEntity(t, e, false)
	k, err := ParsePublicKey(raw)
	if err != nil {
		t.Fatal(err)
	}
	armored, err := k.ArmorPublic()
	if err != nil {
		t.Fatal(err)
	}
	k2, err := ParsePublicKey(armored)
	if err != nil {
		t.Fatalf("re-parse of armored export failed: %v", err)
	}
	if !k2.Fingerprint().Equal(k.Fingerprint()) {
		t.Fatal("fingerprint changed across armor round trip")
	}
}
