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

package securejoin

import (
	"encoding/hex"
	"strconv"

	"chatcrypt/qrinvite"
	"chatcrypt/store"
	"chatcrypt/util"
)

// tokenBytes is the byte length of a generated invitenumber or auth code
// before hex encoding (16 bytes = 128 bits, well beyond brute-force range
// for the lifetime of one invite).
const tokenBytes = 16

// Token is the invitenumber/auth pair issued for one chat's invite, the
// secret Bob must echo back (encrypted, once he has Alice's key) to prove
// he is the party who scanned the QR code and not a passive MITM.
type Token struct {
	ChatID       int64
	Variant      qrinvite.Variant
	InviteNumber string
	Auth         string
}

// TokenStore persists one Token per chat, keyed by chat id.
type TokenStore struct {
	st *store.Store[Token]
}

// NewTokenStore wraps backend as a Secure-Join token store.
func NewTokenStore(backend store.Backend) *TokenStore {
	return &TokenStore{st: store.New[Token](backend)}
}

// Create mints a fresh invitenumber/auth pair for chatID and persists it,
// overwriting any invite previously issued for that chat.
func (s *TokenStore) Create(chatID int64, variant qrinvite.Variant) (Token, error) {
	tok := Token{
		ChatID:       chatID,
		Variant:      variant,
		InviteNumber: randomToken(),
		Auth:         randomToken(),
	}
	if err := s.st.Put(tokenKey(chatID), tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// Get returns the token issued for chatID, if any.
func (s *TokenStore) Get(chatID int64) (Token, bool, error) {
	return s.st.Get(tokenKey(chatID))
}

// Validate reports whether inviteNumber and auth match the token issued
// for chatID.
func (s *TokenStore) Validate(chatID int64, inviteNumber, auth string) (bool, error) {
	tok, ok, err := s.Get(chatID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return tok.InviteNumber == inviteNumber && tok.Auth == auth, nil
}

func tokenKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func randomToken() string {
	return hex.EncodeToString(util.NewRndArray(tokenBytes))
}
