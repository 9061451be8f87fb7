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

// matchCanonical recognises the well-formed PGP/MIME envelope: a
// multipart/encrypted with exactly two subparts, the second an
// application/octet-stream carrying the ciphertext.
func matchCanonical(p *Part) ([]byte, bool) {
	if p.ContentType != "multipart/encrypted" || len(p.Parts) != 2 {
		return nil, false
	}
	if p.Parts[1].ContentType != "application/octet-stream" {
		return nil, false
	}
	return p.Parts[1].Body, true
}

// matchMixedUp recognises a mail client's mangled re-wrapping of PGP/MIME
// as multipart/mixed with exactly three subparts in a fixed order: a
// throwaway text/plain placeholder, the version-identification part, and
// the ciphertext.
func matchMixedUp(p *Part) ([]byte, bool) {
	if p.ContentType != "multipart/mixed" || len(p.Parts) != 3 {
		return nil, false
	}
	if p.Parts[0].ContentType != "text/plain" ||
		p.Parts[1].ContentType != "application/pgp-encrypted" ||
		p.Parts[2].ContentType != "application/octet-stream" {
		return nil, false
	}
	return p.Parts[2].Body, true
}

// matchAttachmentWrapped recognises a multipart/mixed whose second subpart
// is itself a canonical PGP/MIME message (the first subpart is typically a
// "this message is encrypted" placeholder attachment some clients add).
func matchAttachmentWrapped(p *Part) (*Part, bool) {
	if p.ContentType != "multipart/mixed" || len(p.Parts) < 2 {
		return nil, false
	}
	inner := p.Parts[1]
	if _, ok := matchCanonical(inner); ok {
		return inner, true
	}
	return nil, false
}

// matchDetachedSigned recognises multipart/signed: exactly two subparts,
// the signed content and its detached signature.
func matchDetachedSigned(p *Part) (signed, sig *Part, ok bool) {
	if p.ContentType != "multipart/signed" || len(p.Parts) != 2 {
		return nil, nil, false
	}
	return p.Parts[0], p.Parts[1], true
}
