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

package decrypt

import (
	"bytes"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"chatcrypt/pgpkey"
)

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

// encryptAndSign produces an armored PGP/MIME ciphertext body encrypted to
// "to" and signed by "from".
func encryptAndSign(t *testing.T, to, from *openpgp.Entity, plaintext []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		t.Fatalf("armor.Encode: %v", err)
	}
	pt, err := openpgp.Encrypt(w, openpgp.EntityList{to}, from, nil, nil)
	if err != nil {
		t.Fatalf("openpgp.Encrypt: %v", err)
	}
	if _, err := pt.Write(plaintext); err != nil {
		t.Fatalf("write plaintext: %v", err)
	}
	if err := pt.Close(); err != nil {
		t.Fatalf("close plaintext writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close armor writer: %v", err)
	}
	return buf.Bytes()
}

func keyringOf(t *testing.T, entities ...*openpgp.Entity) *pgpkey.Keyring {
	t.Helper()
	kr := pgpkey.NewKeyring()
	for _, e := range entities {
		raw := armorEntity(t, e, e.PrivateKey != nil)
		var k *pgpkey.Key
		var err error
		if e.PrivateKey != nil {
			k, err = pgpkey.ParseSecretKey(raw)
		} else {
			k, err = pgpkey.ParsePublicKey(raw)
		}
		if err != nil {
			t.Fatalf("parse key for keyring: %v", err)
		}
		kr.Add(k)
	}
	return kr
}

func TestDecryptCanonicalPGPMIME(t *testing.T) {
	alice := newTestEntity(t, "Alice", "alice@b.org")
	bob := newTestEntity(t, "Bob", "bob@c.org")
	plaintext := []byte("Content-Type: text/plain\r\n\r\nhello bob")
	ciphertext := encryptAndSign(t, bob, alice, plaintext)

	part := &Part{
		ContentType: "multipart/encrypted",
		Parts: []*Part{
			{ContentType: "application/pgp-encrypted"},
			{ContentType: "application/octet-stream", Body: ciphertext},
		},
	}

	ownKeys := keyringOf(t, bob)
	peerKeys := keyringOf(t, alice)

	res, err := Decrypt(part, ownKeys, peerKeys)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if !bytes.Equal(res.Plaintext, plaintext) {
		t.Fatalf("plaintext mismatch: got %q", res.Plaintext)
	}
	if len(res.Signers) != 1 {
		t.Fatalf("expected exactly one signer, got %d", len(res.Signers))
	}
	alicePub, _ := pgpkey.ParsePublicKey(armorEntity(t, alice, false))
	if !res.Signers[0].Equal(alicePub.Fingerprint()) {
		t.Fatalf("signer fingerprint mismatch")
	}
}

func TestDecryptMixedUpPGPMIME(t *testing.T) {
	alice := newTestEntity(t, "Alice", "alice@b.org")
	bob := newTestEntity(t, "Bob", "bob@c.org")
	plaintext := []byte("Content-Type: text/plain\r\n\r\nEmpty Message")
	ciphertext := encryptAndSign(t, bob, alice, plaintext)

	canonical := &Part{
		ContentType: "multipart/encrypted",
		Parts: []*Part{
			{ContentType: "application/pgp-encrypted"},
			{ContentType: "application/octet-stream", Body: ciphertext},
		},
	}
	mixedUp := &Part{
		ContentType: "multipart/mixed",
		Parts: []*Part{
			{ContentType: "text/plain", Body: []byte("Empty Message")},
			{ContentType: "application/pgp-encrypted"},
			{ContentType: "application/octet-stream", Body: ciphertext},
		},
	}

	ownKeys := keyringOf(t, bob)
	peerKeys := keyringOf(t, alice)

	canonicalRes, err := Decrypt(canonical, ownKeys, peerKeys)
	if err != nil {
		t.Fatalf("Decrypt(canonical): %v", err)
	}
	mixedRes, err := Decrypt(mixedUp, ownKeys, peerKeys)
	if err != nil {
		t.Fatalf("Decrypt(mixedUp): %v", err)
	}
	if !bytes.Equal(canonicalRes.Plaintext, mixedRes.Plaintext) {
		t.Fatal("canonical and mixed-up forms must decrypt to identical plaintext")
	}
	if len(mixedRes.Signers) != 1 || !mixedRes.Signers[0].Equal(canonicalRes.Signers[0]) {
		t.Fatal("canonical and mixed-up forms must report the same signer set")
	}
}

func TestDecryptAttachmentWrapped(t *testing.T) {
	alice := newTestEntity(t, "Alice", "alice@b.org")
	bob := newTestEntity(t, "Bob", "bob@c.org")
	plaintext := []byte("Content-Type: text/plain\r\n\r\nwrapped")
	ciphertext := encryptAndSign(t, bob, alice, plaintext)

	part := &Part{
		ContentType: "multipart/mixed",
		Parts: []*Part{
			{ContentType: "text/plain", Body: []byte("this message is encrypted")},
			{
				ContentType: "multipart/encrypted",
				Parts: []*Part{
					{ContentType: "application/pgp-encrypted"},
					{ContentType: "application/octet-stream", Body: ciphertext},
				},
			},
		},
	}

	ownKeys := keyringOf(t, bob)
	peerKeys := keyringOf(t, alice)

	res, err := Decrypt(part, ownKeys, peerKeys)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if res == nil || !bytes.Equal(res.Plaintext, plaintext) {
		t.Fatal("expected the attachment-wrapped ciphertext to decrypt")
	}
}

func TestDecryptNothingEncrypted(t *testing.T) {
	part := &Part{ContentType: "text/plain", Body: []byte("plain mail")}
	res, err := Decrypt(part, pgpkey.NewKeyring(), pgpkey.NewKeyring())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res != nil {
		t.Fatal("expected nil result for a message with nothing encrypted")
	}
}

func TestDecryptMalformedCiphertext(t *testing.T) {
	bob := newTestEntity(t, "Bob", "bob@c.org")
	part := &Part{
		ContentType: "multipart/encrypted",
		Parts: []*Part{
			{ContentType: "application/pgp-encrypted"},
			{ContentType: "application/octet-stream", Body: []byte("-----BEGIN PGP MESSAGE-----\n\nnot valid base64 pgp data\n-----END PGP MESSAGE-----\n")},
		},
	}
	_, err := Decrypt(part, keyringOf(t, bob), pgpkey.NewKeyring())
	if err == nil {
		t.Fatal("expected an error for malformed ciphertext")
	}
}

func TestValidateDetachedSignature(t *testing.T) {
	alice := newTestEntity(t, "Alice", "alice@b.org")
	content := []byte("hello, signed and not encrypted")

	var sigBuf bytes.Buffer
	armorW, err := armor.Encode(&sigBuf, "PGP SIGNATURE", nil)
	if err != nil {
		t.Fatalf("armor.Encode: %v", err)
	}
	if err := openpgp.DetachSign(armorW, alice, bytes.NewReader(content), nil); err != nil {
		t.Fatalf("DetachSign: %v", err)
	}
	if err := armorW.Close(); err != nil {
		t.Fatalf("close armor writer: %v", err)
	}

	part := &Part{
		ContentType: "multipart/signed",
		Parts: []*Part{
			{ContentType: "text/plain", Body: content},
			{ContentType: "application/pgp-signature", Body: sigBuf.Bytes()},
		},
	}

	signers, err := ValidateDetachedSignature(part, keyringOf(t, alice))
	if err != nil {
		t.Fatalf("ValidateDetachedSignature: %v", err)
	}
	if len(signers) != 1 {
		t.Fatalf("expected exactly one verified signer, got %d", len(signers))
	}
}
