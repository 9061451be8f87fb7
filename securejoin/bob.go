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
	"sync"

	"chatcrypt/eventbus"
	"chatcrypt/peerstate"
	"chatcrypt/pgpkey"
	"chatcrypt/qrinvite"
)

// BobState is the joiner's in-flight handshake for one account. An account
// holds at most one at a time (the "ongoing slot" constraint): scanning a
// second QR code while one join is already running is refused rather than
// silently abandoning the first.
type BobState struct {
	Account string
	ChatID  int64
	Invite  *qrinvite.QrInvite
	// Expect is the next message type this state machine is waiting to
	// receive from Alice.
	Expect string
}

// Bob drives the joiner's side of the handshake for any number of accounts,
// each with its own ongoing slot.
type Bob struct {
	mu         sync.Mutex
	ongoing    map[string]*BobState
	Peerstates *peerstate.Registry
	Bus        *eventbus.Bus
}

// NewBob creates a Bob state machine backed by peerstates and bus.
func NewBob(peerstates *peerstate.Registry, bus *eventbus.Bus) *Bob {
	return &Bob{
		ongoing:    make(map[string]*BobState),
		Peerstates: peerstates,
		Bus:        bus,
	}
}

// Status returns account's ongoing Secure-Join, if any.
func (b *Bob) Status(account string) (BobState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.ongoing[account]
	if !ok {
		return BobState{}, false
	}
	return *st, true
}

// StartJoin begins a Secure-Join for account, having scanned inv. It
// returns the first message to send to Alice. If account already has an
// ongoing join, ErrJoinInProgress is returned and nothing changes.
//
// When Bob already holds a peerstate for inv.Addr whose public key
// fingerprint matches the invite's fingerprint, the vc-/vg-request and
// auth-required round trip is skipped entirely: Bob already knows Alice's
// key out of band, so there's nothing left for that exchange to establish,
// and he jumps straight to proving he holds the auth secret.
func (b *Bob) StartJoin(account string, chatID int64, inv *qrinvite.QrInvite) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.ongoing[account]; exists {
		return "", ErrJoinInProgress
	}

	ps, ok, err := b.Peerstates.Get(inv.Addr)
	if err != nil {
		return "", err
	}
	shortcut := ok && ps.PublicKeyFingerprint.Equal(inv.Fingerprint)

	st := &BobState{Account: account, ChatID: chatID, Invite: inv}
	b.ongoing[account] = st

	if shortcut {
		// Already knows Alice's key out of band: nothing left for the
		// vc-/vg-request round trip to establish, so this jumps straight to
		// the point a normal join reaches on vc-/vg-auth-required.
		st.Expect = confirmMsg(inv.Variant)
		b.emitProgress(chatID, inv.Addr, ProgressAuthRequired)
		return requestWithAuthMsg(inv.Variant), nil
	}
	st.Expect = authRequiredMsg(inv.Variant)
	return requestMsg(inv.Variant), nil
}

// OnAuthRequired handles Alice's vc-auth-required/vg-auth-required reply,
// sending back the invite's auth secret.
func (b *Bob) OnAuthRequired(account, msgType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.ongoing[account]
	if !ok {
		return "", ErrNoSuchJoin
	}
	if msgType != st.Expect {
		return "", ErrWrongStep
	}
	st.Expect = confirmMsg(st.Invite.Variant)
	b.emitProgress(st.ChatID, st.Invite.Addr, ProgressAuthRequired)
	return requestWithAuthMsg(st.Invite.Variant), nil
}

// OnConfirm handles Alice's vc-contact-confirm/vg-member-added reply: the
// auth secret checked out on Alice's side, and peerKey (Alice's own key,
// carried in this message) is now verified. A contact-variant join is
// complete here; a group-variant join still needs FinishGroupJoin once the
// ack has been sent.
func (b *Bob) OnConfirm(account, msgType string, peerKey *pgpkey.Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.ongoing[account]
	if !ok {
		return ErrNoSuchJoin
	}
	if msgType != st.Expect {
		return ErrWrongStep
	}
	if err := b.Peerstates.ApplyVerification(st.Invite.Addr, peerKey, st.Invite.Addr); err != nil {
		return err
	}

	if st.Invite.Variant == qrinvite.Group {
		// Still awaits his own vg-member-added-received (FinishGroupJoin)
		// before his side reaches 1000; Alice's matching 800 belongs to
		// her progress, not his.
		return nil
	}
	b.emitProgress(st.ChatID, st.Invite.Addr, ProgressComplete)
	delete(b.ongoing, account)
	return nil
}

// FinishGroupJoin releases account's ongoing slot once Bob has sent
// vg-member-added-received, the final step of a group join.
func (b *Bob) FinishGroupJoin(account string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.ongoing[account]
	if !ok {
		return ErrNoSuchJoin
	}
	if st.Invite.Variant != qrinvite.Group {
		return ErrWrongStep
	}
	b.emitProgress(st.ChatID, st.Invite.Addr, ProgressComplete)
	delete(b.ongoing, account)
	return nil
}

// Cancel abandons account's ongoing join (timeout, a step out of sequence,
// user cancellation), releasing its slot and telling the UI why.
func (b *Bob) Cancel(account, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.ongoing[account]
	if !ok {
		return
	}
	b.Bus.Emit(&eventbus.Event{ID: eventbus.EvSecurejoinError, ChatID: st.ChatID, Addr: st.Invite.Addr, Reason: reason})
	delete(b.ongoing, account)
}

func (b *Bob) emitProgress(chatID int64, addr string, p Progress) {
	b.Bus.Emit(&eventbus.Event{ID: eventbus.EvSecurejoinProgress, ChatID: chatID, Addr: addr, Progress: int(p)})
}

func requestMsg(v qrinvite.Variant) string {
	if v == qrinvite.Group {
		return MsgVGRequest
	}
	return MsgVCRequest
}

func authRequiredMsg(v qrinvite.Variant) string {
	if v == qrinvite.Group {
		return MsgVGAuthRequired
	}
	return MsgVCAuthRequired
}

func requestWithAuthMsg(v qrinvite.Variant) string {
	if v == qrinvite.Group {
		return MsgVGRequestWithAuth
	}
	return MsgVCRequestWithAuth
}

func confirmMsg(v qrinvite.Variant) string {
	if v == qrinvite.Group {
		return MsgVGMemberAdded
	}
	return MsgVCContactConfirm
}
