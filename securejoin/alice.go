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
	"github.com/bfix/gospel/logger"

	"chatcrypt/eventbus"
	"chatcrypt/peerstate"
	"chatcrypt/pgpkey"
	"chatcrypt/qrinvite"
)

// Alice is the inviter's half of the handshake. It carries no per-joiner
// state of its own: every request is answered solely from the token store
// and the peerstate registry, so any number of joiners can scan the same
// (or distinct) invites concurrently without Alice tracking their progress.
type Alice struct {
	SelfAddr   string
	Peerstates *peerstate.Registry
	Tokens     *TokenStore
	Bus        *eventbus.Bus
}

// CreateInvite mints a fresh token for chatID and builds the QR payload a
// renderer (out of scope here) turns into a scannable code.
func (a *Alice) CreateInvite(variant qrinvite.Variant, chatID int64, ownKey *pgpkey.Key, name, groupName, groupID string) (*qrinvite.QrInvite, error) {
	tok, err := a.Tokens.Create(chatID, variant)
	if err != nil {
		return nil, err
	}
	inv := &qrinvite.QrInvite{
		Variant:      variant,
		Fingerprint:  ownKey.Fingerprint(),
		Addr:         a.SelfAddr,
		Name:         name,
		GroupName:    groupName,
		GroupID:      groupID,
		InviteNumber: tok.InviteNumber,
		Auth:         tok.Auth,
	}
	return inv, nil
}

// HandleRequest answers a vc-request/vg-request: if inviteNumber names a
// token we issued for chatID, Alice asks for the auth code next.
func (a *Alice) HandleRequest(chatID int64, addr, inviteNumber string) (string, error) {
	tok, ok, err := a.Tokens.Get(chatID)
	if err != nil {
		return "", err
	}
	if !ok || tok.InviteNumber != inviteNumber {
		logger.Printf(logger.WARN, "[securejoin] unknown invite number for chat %d from %s", chatID, addr)
		return "", ErrUnknownInvite
	}
	a.emitProgress(chatID, addr, ProgressRequest)
	if tok.Variant == qrinvite.Group {
		return MsgVGAuthRequired, nil
	}
	return MsgVCAuthRequired, nil
}

// HandleRequestWithAuth answers a vc-request-with-auth/vg-request-with-auth:
// the joiner has echoed back the auth secret, encrypted and signed by
// peerKey. A mismatch here is exactly the MITM-without-the-secret scenario
// Secure-Join exists to catch; it is reported, not silently dropped, so the
// UI can tell the user their contact's join attempt failed.
//
// A contact-variant join is complete the moment the auth code checks out:
// Alice replies vc-contact-confirm and the handshake is done. A
// group-variant join still awaits the joiner's own acknowledgement
// (vg-member-added-received, handled by HandleMemberAddedReceived) before
// progress reaches 1000.
func (a *Alice) HandleRequestWithAuth(chatID int64, addr, inviteNumber, auth string, peerKey *pgpkey.Key) (string, error) {
	tok, ok, err := a.Tokens.Get(chatID)
	if err != nil {
		return "", err
	}
	if !ok || tok.InviteNumber != inviteNumber || tok.Auth != auth {
		a.Bus.Emit(&eventbus.Event{ID: eventbus.EvSecurejoinError, ChatID: chatID, Addr: addr, Reason: "auth code mismatch"})
		return "", ErrAuthMismatch
	}
	if err := a.Peerstates.ApplyVerification(addr, peerKey, a.SelfAddr); err != nil {
		return "", err
	}

	a.emitProgress(chatID, addr, ProgressRequestWithAuth)
	if tok.Variant == qrinvite.Group {
		a.emitProgress(chatID, addr, ProgressContactConfirmed)
		return MsgVGMemberAdded, nil
	}
	a.emitProgress(chatID, addr, ProgressComplete)
	return MsgVCContactConfirm, nil
}

// HandleMemberAddedReceived closes out a group join once the joiner has
// acknowledged membership: Alice's own side of the handshake is now
// complete.
func (a *Alice) HandleMemberAddedReceived(chatID int64, addr string) {
	a.emitProgress(chatID, addr, ProgressComplete)
}

func (a *Alice) emitProgress(chatID int64, addr string, p Progress) {
	a.Bus.Emit(&eventbus.Event{ID: eventbus.EvSecurejoinProgress, ChatID: chatID, Addr: addr, Progress: int(p)})
}
