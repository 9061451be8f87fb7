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

// Package pgpkey wraps github.com/ProtonMail/go-crypto/openpgp entities in
// the tagged-union Key value the rest of the trust core works with: a Key
// is either a Public or a Secret OpenPGP key, always self-consistent and
// always carrying its own derivable fingerprint.
package pgpkey

import (
	"bytes"
	"errors"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"chatcrypt/fingerprint"
)

// Kind distinguishes public from secret key material.
type Kind int

const (
	Public Kind = iota
	Secret
)

// Error codes
var (
	ErrNoPrimaryKey  = errors.New("pgpkey: entity has no primary key")
	ErrNoIdentity    = errors.New("pgpkey: entity has no user identity")
	ErrBadSelfSig    = errors.New("pgpkey: no identity self-signature verifies")
	ErrMultipleKeys  = errors.New("pgpkey: armored block contains more than one key")
	ErrNoSecretKey   = errors.New("pgpkey: entity has no secret key material")
	ErrHasSecretKey  = errors.New("pgpkey: public key block carries secret key material")
	ErrFingerprintSz = errors.New("pgpkey: unexpected fingerprint size")
)

// Key is a signed, self-consistent OpenPGP key, tagged as Public or Secret.
// It always carries its own fingerprint; Verify must have succeeded before
// a Key is admitted into a peerstate or keyring.
type Key struct {
	kind   Kind
	entity *openpgp.Entity
	fp     fingerprint.Fingerprint
}

// ParsePublicKey parses a single armored (or raw-binary) OpenPGP public key
// and verifies it. It is an error for the block to contain more than one
// entity, or for the entity to carry secret key material.
func ParsePublicKey(data []byte) (*Key, error) {
	entities, err := readEntities(data)
	if err != nil {
		return nil, err
	}
	if len(entities) != 1 {
		return nil, ErrMultipleKeys
	}
	if entities[0].PrivateKey != nil {
		return nil, ErrHasSecretKey
	}
	k := &Key{kind: Public, entity: entities[0]}
	if err := k.deriveFingerprint(); err != nil {
		return nil, err
	}
	if err := k.Verify(); err != nil {
		return nil, err
	}
	return k, nil
}

// ParseSecretKey parses a single armored (or raw-binary) OpenPGP secret key
// and verifies it.
func ParseSecretKey(data []byte) (*Key, error) {
	entities, err := readEntities(data)
	if err != nil {
		return nil, err
	}
	if len(entities) != 1 {
		return nil, ErrMultipleKeys
	}
	e := entities[0]
	if e.PrivateKey == nil {
		return nil, ErrNoSecretKey
	}
	k := &Key{kind: Secret, entity: e}
	if err := k.deriveFingerprint(); err != nil {
		return nil, err
	}
	if err := k.Verify(); err != nil {
		return nil, err
	}
	return k, nil
}

// readEntities accepts either armored text or raw binary OpenPGP packets.
func readEntities(data []byte) (openpgp.EntityList, error) {
	if block, err := armor.Decode(bytes.NewReader(data)); err == nil {
		return openpgp.ReadKeyRing(block.Body)
	}
	return openpgp.ReadKeyRing(bytes.NewReader(data))
}

func (k *Key) deriveFingerprint() error {
	pk := k.entity.PrimaryKey
	if pk == nil {
		return ErrNoPrimaryKey
	}
	raw := pk.Fingerprint
	if len(raw) < fingerprint.Size {
		return ErrFingerprintSz
	}
	var fp fingerprint.Fingerprint
	copy(fp[:], raw[:fingerprint.Size])
	k.fp = fp
	return nil
}

// Verify checks that the entity has a primary key and at least one user
// identity whose self-signature validates against that primary key. This
// is the admission gate spec.md requires before a Key may be trusted.
func (k *Key) Verify() error {
	if k.entity.PrimaryKey == nil {
		return ErrNoPrimaryKey
	}
	if len(k.entity.Identities) == 0 {
		return ErrNoIdentity
	}
	for name, ident := range k.entity.Identities {
		if ident.SelfSignature == nil {
			continue
		}
		if err := k.entity.PrimaryKey.VerifyUserIdSignature(name, k.entity.PrimaryKey, ident.SelfSignature); err == nil {
			return nil
		}
	}
	return ErrBadSelfSig
}

// Kind reports whether this is a Public or Secret key.
func (k *Key) Kind() Kind { return k.kind }

// IsSecret reports whether the key carries secret key material.
func (k *Key) IsSecret() bool { return k.kind == Secret }

// Fingerprint returns the key's own (derived) fingerprint.
func (k *Key) Fingerprint() fingerprint.Fingerprint { return k.fp }

// Entity returns the underlying OpenPGP entity, for use by the decryption
// and signature-validation stage.
func (k *Key) Entity() *openpgp.Entity { return k.entity }

// ArmorPublic serialises the public part of the key in armored form,
// suitable for embedding as Autocrypt keydata.
func (k *Key) ArmorPublic() ([]byte, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := k.entity.Serialize(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PublicKeyBytes serialises the raw (non-armored) public key packets, the
// form carried inside the Autocrypt "keydata" attribute.
func (k *Key) PublicKeyBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := k.entity.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromPublicKeyBytes parses raw (non-armored, non-base64) Autocrypt keydata
// into a verified public Key.
func FromPublicKeyBytes(raw []byte) (*Key, error) {
	return ParsePublicKey(raw)
}

//----------------------------------------------------------------------
// Keyring
//----------------------------------------------------------------------

// Keyring is an unordered collection of Keys, used to supply decryption
// candidates (own secret keys) or signature-validation candidates (peer
// public keys) to the decryption stage.
type Keyring struct {
	keys map[fingerprint.Fingerprint]*Key
}

// NewKeyring creates an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[fingerprint.Fingerprint]*Key)}
}

// Add inserts a key into the keyring, keyed by its own fingerprint.
func (kr *Keyring) Add(k *Key) {
	kr.keys[k.Fingerprint()] = k
}

// Get looks up a key by fingerprint.
func (kr *Keyring) Get(fp fingerprint.Fingerprint) (*Key, bool) {
	k, ok := kr.keys[fp]
	return k, ok
}

// EntityList flattens the keyring into an openpgp.EntityList, the shape the
// decryption stage's library calls expect.
func (kr *Keyring) EntityList() openpgp.EntityList {
	list := make(openpgp.EntityList, 0, len(kr.keys))
	for _, k := range kr.keys {
		list = append(list, k.entity)
	}
	return list
}

// Len reports the number of keys in the ring.
func (kr *Keyring) Len() int { return len(kr.keys) }
