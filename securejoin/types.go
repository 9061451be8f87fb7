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

// Package securejoin implements the out-of-band QR-code handshake (C8, C9)
// that lets two accounts verify each other's key without trusting DKIM or
// gossip at all: Alice (the inviter) answers requests statelessly against
// her token store, Bob (the joiner) drives a small per-account state
// machine from the moment he scans the invite to the moment the chat is
// confirmed.
package securejoin

import "errors"

// Progress is the value eventbus.Event.Progress carries for
// eventbus.EvSecurejoinProgress. The numeric ladder is shared, but each
// role reaches it at a different handshake step (scenario S4): Alice (the
// inviter) emits 300 on vc-/vg-request, 600 on vc-/vg-request-with-auth,
// and 1000 once her side is done (800 first, for a group join, since she
// still awaits the joiner's member-added-received). Bob (the joiner) emits
// nothing on request (he already knows he just sent it), 400 on
// vc-/vg-auth-required (or immediately, if the already-known-key shortcut
// skips straight past it), and 1000 once his side is done.
type Progress int

const (
	ProgressRequest          Progress = 300 // Alice: vc-/vg-request received
	ProgressAuthRequired     Progress = 400 // Bob: vc-/vg-auth-required received (or shortcut)
	ProgressRequestWithAuth  Progress = 600 // Alice: vc-/vg-request-with-auth received
	ProgressContactConfirmed Progress = 800 // Alice: vg-member-added sent (group only, not yet terminal)
	ProgressComplete         Progress = 1000
)

// Origin records how a contact's peerstate came to be verified through
// Secure-Join, for the UI to distinguish "I invited them" from "I scanned
// their invite".
type Origin int

const (
	OriginSecurejoinInvited Origin = iota // we are Alice
	OriginSecurejoinJoined                // we are Bob
)

// Handshake message type names, exactly as they appear on the wire.
const (
	MsgVCRequest             = "vc-request"
	MsgVGRequest             = "vg-request"
	MsgVCAuthRequired        = "vc-auth-required"
	MsgVGAuthRequired        = "vg-auth-required"
	MsgVCRequestWithAuth     = "vc-request-with-auth"
	MsgVGRequestWithAuth     = "vg-request-with-auth"
	MsgVCContactConfirm      = "vc-contact-confirm"
	MsgVGMemberAdded         = "vg-member-added"
	MsgVGMemberAddedReceived = "vg-member-added-received"
)

// Error codes
var (
	ErrUnknownInvite  = errors.New("securejoin: invite number not recognised")
	ErrAuthMismatch   = errors.New("securejoin: auth code does not match the issued invite")
	ErrJoinInProgress = errors.New("securejoin: this account already has an ongoing Secure-Join")
	ErrNoSuchJoin     = errors.New("securejoin: no ongoing Secure-Join for this account")
	ErrWrongStep      = errors.New("securejoin: message does not match the expected handshake step")
)
