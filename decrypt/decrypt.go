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
	"errors"
	"fmt"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"chatcrypt/fingerprint"
	"chatcrypt/pgpkey"
)

// ErrMalformedPGP is the only error Decrypt ever returns: ciphertext that
// looked like PGP/MIME but failed to decrypt (bad data, no matching key).
// Callers treat it as "leave the outer part intact and mark the message
// decryption-failed", never as "drop the message".
var ErrMalformedPGP = errors.New("decrypt: malformed PGP data")

// pgpMessageHeader is the armor header the ciphertext body is expected to
// begin at, once any leading whitespace a mangling MUA introduced is
// stripped.
var pgpMessageHeader = []byte("-----BEGIN PGP MESSAGE-----")

// Result is what a successful Decrypt call yields.
type Result struct {
	Plaintext []byte
	// Signers is the set of peer fingerprints whose signature verified
	// against Plaintext. It may be empty: encrypted-but-unsigned is a
	// valid shape.
	Signers []fingerprint.Fingerprint
}

// Decrypt locates and opens the encrypted payload inside part, trying each
// recognised envelope shape (§4.5) in turn. It returns (nil, nil) when
// part contains nothing encrypted at all. ownKeys supplies the account's
// own secret keys to decrypt with; peerKeys supplies the public keys a
// signature may validate against.
func Decrypt(part *Part, ownKeys, peerKeys *pgpkey.Keyring) (*Result, error) {
	if ciphertext, ok := matchCanonical(part); ok {
		return decryptCiphertext(ciphertext, ownKeys, peerKeys)
	}
	if ciphertext, ok := matchMixedUp(part); ok {
		return decryptCiphertext(ciphertext, ownKeys, peerKeys)
	}
	if inner, ok := matchAttachmentWrapped(part); ok {
		if ciphertext, ok := matchCanonical(inner); ok {
			return decryptCiphertext(ciphertext, ownKeys, peerKeys)
		}
	}
	return nil, nil
}

// ValidateDetachedSignature implements the multipart/signed half of §4.5.
// It returns (nil, nil) when part is not a detached-signature envelope, and
// an empty slice with a nil error when the signature failed to verify: a
// detached signature that doesn't check out is not malformed PGP, just an
// untrusted message.
//
// The signed content is verified against its decoded body bytes, not a
// byte-exact re-serialisation of the original MIME entity (RFC 3156's
// canonicalised header+body). spec.md §1 assumes MIME byte-level parsing
// happens upstream of this package; a production caller supplying the raw,
// canonicalised bytes of the signed part would pass those instead of
// Part.Body.
func ValidateDetachedSignature(part *Part, peerKeys *pgpkey.Keyring) ([]fingerprint.Fingerprint, error) {
	signed, sig, ok := matchDetachedSigned(part)
	if !ok {
		return nil, nil
	}

	sigReader, err := armorOrRaw(leadingArmor(sig.Body))
	if err != nil {
		return nil, nil
	}
	signer, err := openpgp.CheckDetachedSignature(peerKeys.EntityList(), bytes.NewReader(signed.Body), sigReader, nil)
	if err != nil || signer == nil {
		return []fingerprint.Fingerprint{}, nil
	}
	fp, ok := fingerprintOf(signer.PrimaryKey.Fingerprint)
	if !ok {
		return []fingerprint.Fingerprint{}, nil
	}
	return []fingerprint.Fingerprint{fp}, nil
}

func decryptCiphertext(ciphertext []byte, ownKeys, peerKeys *pgpkey.Keyring) (*Result, error) {
	reader, err := armorOrRaw(leadingArmor(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPGP, err)
	}

	keyring := make(openpgp.EntityList, 0, ownKeys.Len()+peerKeys.Len())
	keyring = append(keyring, ownKeys.EntityList()...)
	keyring = append(keyring, peerKeys.EntityList()...)

	md, err := openpgp.ReadMessage(reader, keyring, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPGP, err)
	}
	plaintext, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPGP, err)
	}

	var signers []fingerprint.Fingerprint
	if md.IsSigned && md.SignatureError == nil && md.SignedBy != nil {
		if fp, ok := fingerprintOf(md.SignedBy.PublicKey.Fingerprint); ok {
			signers = append(signers, fp)
		}
	}
	return &Result{Plaintext: plaintext, Signers: signers}, nil
}

// leadingArmor strips leading whitespace a mangling MUA introduced before
// the armor header, falling back to a plain search for the header anywhere
// in the buffer; if the header is not found at all the bytes are returned
// unchanged (possibly raw, non-armored OpenPGP packets).
func leadingArmor(b []byte) []byte {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	if bytes.HasPrefix(trimmed, pgpMessageHeader) {
		return trimmed
	}
	if idx := bytes.Index(b, pgpMessageHeader); idx >= 0 {
		return b[idx:]
	}
	return b
}

// armorOrRaw decodes an ASCII-armored block, falling back to treating data
// as already-binary OpenPGP packets.
func armorOrRaw(data []byte) (io.Reader, error) {
	block, err := armor.Decode(bytes.NewReader(data))
	if err != nil {
		return bytes.NewReader(data), nil
	}
	return block.Body, nil
}

// fingerprintOf converts a go-crypto raw fingerprint (which may be longer
// than 20 bytes for newer key versions) into this package's fixed-size
// Fingerprint, as pgpkey.deriveFingerprint does.
func fingerprintOf(raw []byte) (fingerprint.Fingerprint, bool) {
	var fp fingerprint.Fingerprint
	if len(raw) < fingerprint.Size {
		return fp, false
	}
	copy(fp[:], raw[:fingerprint.Size])
	return fp, true
}
