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

package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bfix/gospel/logger"
	"github.com/gorilla/mux"

	"chatcrypt/authres"
	"chatcrypt/config"
	"chatcrypt/eventbus"
	"chatcrypt/peerstate"
	"chatcrypt/pgpkey"
	"chatcrypt/qrinvite"
	"chatcrypt/securejoin"
	"chatcrypt/store"
	"chatcrypt/trust"
)

// account bundles one configured account's trust-core wiring: its own
// registries, its inbound gate, and both halves of the Secure-Join
// handshake. Mail transport and MIME tokenizing live outside this process
// boundary (an IMAP/SMTP front-end feeds Parts in and takes outgoing
// messages out); chatcryptd only owns the cryptographic trust state.
type account struct {
	cfg *config.AccountConfig

	ownKey     *pgpkey.Key
	peerstates *peerstate.Registry
	chats      *trust.ChatRegistry
	domains    *authres.DomainMemory
	domainKey  store.Backend
	tokens     *securejoin.TokenStore
	bus        *eventbus.Bus

	gate  *trust.Gate
	alice *securejoin.Alice
	bob   *securejoin.Bob
}

const domainMemoryKey = "bits"

func newAccount(cfg *config.AccountConfig) (*account, error) {
	secretBytes, err := os.ReadFile(cfg.SecretKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading secret key for %s: %w", cfg.Addr, err)
	}
	ownKey, err := pgpkey.ParseSecretKey(secretBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing secret key for %s: %w", cfg.Addr, err)
	}

	peerstateBackend, err := store.OpenBackend(cfg.PeerstateStore)
	if err != nil {
		return nil, fmt.Errorf("opening peerstate store for %s: %w", cfg.Addr, err)
	}
	tokenBackend, err := store.OpenBackend(cfg.TokenStore)
	if err != nil {
		return nil, fmt.Errorf("opening token store for %s: %w", cfg.Addr, err)
	}
	domainBackend, err := store.OpenBackend(cfg.DomainMemoryStore)
	if err != nil {
		return nil, fmt.Errorf("opening domain memory store for %s: %w", cfg.Addr, err)
	}
	domains := loadDomainMemory(domainBackend)

	a := &account{
		cfg:        cfg,
		ownKey:     ownKey,
		peerstates: peerstate.NewRegistry(peerstateBackend),
		chats:      trust.NewChatRegistry(store.NewMemoryBackend()),
		domains:    domains,
		domainKey:  domainBackend,
		tokens:     securejoin.NewTokenStore(tokenBackend),
		bus:        eventbus.New(),
	}
	a.gate = &trust.Gate{
		Peerstates: a.peerstates,
		Chats:      a.chats,
		Domains:    a.domains,
		Bus:        a.bus,
	}
	a.alice = &securejoin.Alice{
		SelfAddr:   cfg.Addr,
		Peerstates: a.peerstates,
		Tokens:     a.tokens,
		Bus:        a.bus,
	}
	a.bob = securejoin.NewBob(a.peerstates, a.bus)
	return a, nil
}

func loadDomainMemory(backend store.Backend) *authres.DomainMemory {
	st := store.New[string](backend)
	encoded, ok, err := st.Get(domainMemoryKey)
	if err != nil || !ok {
		return authres.NewDomainMemory()
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return authres.NewDomainMemory()
	}
	return authres.NewDomainMemoryFromBytes(raw)
}

func (a *account) saveDomainMemory() error {
	st := store.New[string](a.domainKey)
	return st.Put(domainMemoryKey, base64.StdEncoding.EncodeToString(a.domains.Bytes()))
}

func main() {
	defer func() {
		logger.Println(logger.INFO, "[chatcryptd] Bye.")
		logger.Flush()
	}()

	var (
		cfgFile  string
		logLevel int
		httpAddr string
		invite   string
	)
	flag.StringVar(&cfgFile, "c", "chatcrypt-config.json", "chatcryptd configuration file")
	flag.IntVar(&logLevel, "L", logger.INFO, "log level (default: INFO)")
	flag.StringVar(&httpAddr, "H", "", "debug HTTP listen address (default: disabled)")
	flag.StringVar(&invite, "invite", "", "print a Secure-Join contact invite for this account address and exit")
	flag.Parse()
	logger.SetLogLevel(logLevel)

	logger.Println(logger.INFO, "[chatcryptd] Starting...")
	if err := config.ParseConfig(cfgFile); err != nil {
		logger.Printf(logger.ERROR, "[chatcryptd] invalid configuration: %s\n", err.Error())
		return
	}

	accounts := make(map[string]*account, len(config.Cfg.Accounts))
	for _, cfg := range config.Cfg.Accounts {
		a, err := newAccount(cfg)
		if err != nil {
			logger.Printf(logger.ERROR, "[chatcryptd] %s\n", err.Error())
			return
		}
		accounts[cfg.Addr] = a
		logger.Printf(logger.INFO, "[chatcryptd] account %s ready (fingerprint %s)\n", cfg.Addr, a.ownKey.Fingerprint())
	}

	if invite != "" {
		a, ok := accounts[invite]
		if !ok {
			logger.Printf(logger.ERROR, "[chatcryptd] no such account: %s\n", invite)
			return
		}
		inv, err := a.alice.CreateInvite(qrinvite.Contact, 0, a.ownKey, invite, "", "")
		if err != nil {
			logger.Printf(logger.ERROR, "[chatcryptd] could not create invite: %s\n", err.Error())
			return
		}
		fmt.Println(inv.String())
		return
	}

	var httpSrv *http.Server
	if httpAddr != "" {
		httpSrv = startDebugHTTP(httpAddr, accounts)
	}

	sigCh := make(chan os.Signal, 5)
	signal.Notify(sigCh)
	tick := time.NewTicker(5 * time.Minute)

loop:
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGKILL, syscall.SIGINT, syscall.SIGTERM:
				logger.Printf(logger.INFO, "[chatcryptd] terminating (signal '%s')\n", sig)
				break loop
			case syscall.SIGHUP:
				logger.Println(logger.INFO, "[chatcryptd] SIGHUP")
			default:
				logger.Println(logger.INFO, "[chatcryptd] unhandled signal: "+sig.String())
			}
		case now := <-tick.C:
			logger.Println(logger.INFO, "[chatcryptd] heart beat at "+now.String())
		}
	}

	for addr, a := range accounts {
		if err := a.saveDomainMemory(); err != nil {
			logger.Printf(logger.WARN, "[chatcryptd] could not persist domain memory for %s: %s\n", addr, err.Error())
		}
	}
	if httpSrv != nil {
		_ = httpSrv.Close()
	}
}

// startDebugHTTP exposes read-only peerstate inspection
// for operators, never a control surface: nothing it serves can mutate
// trust state.
func startDebugHTTP(addr string, accounts map[string]*account) *http.Server {
	router := mux.NewRouter()
	router.HandleFunc("/accounts/{account}/peerstate/{addr}", func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		a, ok := accounts[vars["account"]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		ps, ok, err := a.peerstates.Get(vars["addr"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ps)
	})

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		logger.Printf(logger.INFO, "[chatcryptd] debug HTTP listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf(logger.WARN, "[chatcryptd] debug HTTP stopped: %s\n", err.Error())
		}
	}()
	return srv
}
