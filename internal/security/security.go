// Package security is the reference implementation of the bus's four
// security hooks (spec.md §6): encrypt, decrypt, authorize, and
// violation-reporting. It assumes session and group keys have already
// been negotiated out of band (key exchange is explicitly out of scope,
// spec.md §1) and are plain symmetric keys, so it reaches for
// nacl/secretbox rather than the asymmetric nacl/box the corpus shows
// for public-key sealing (_examples/kryptco-kr/krypto.go's sodiumBox).
package security

import (
	"bytes"
	"crypto/rand"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/allbus/corebus/internal/wire"
	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the symmetric key length nacl/secretbox requires.
const KeySize = 32

var (
	// ErrNoKey is returned by Encrypt/Decrypt when no session or group key
	// is available for the message's destination session.
	ErrNoKey = errors.New("security: no key for message session")
	// ErrDecryptFailed is returned by Decrypt when the box does not open,
	// i.e. the ciphertext was tampered with or the wrong key was used.
	ErrDecryptFailed = errors.New("security: decrypt failed")
	// ErrNotEncrypted is returned by Decrypt when FlagEncrypted is unset.
	ErrNotEncrypted = errors.New("security: message is not marked encrypted")
)

// Hooks implements dispatch.SecurityHooks against an in-memory keyring of
// per-session keys plus one group key used for sessionless/broadcast
// traffic that has no single session to key off of.
type Hooks struct {
	mu          sync.RWMutex
	sessionKeys map[uint32]*[KeySize]byte
	groupKey    *[KeySize]byte
	log         *slog.Logger
}

// New builds an empty keyring. Keys are installed with SetSessionKey and
// SetGroupKey as sessions are established.
func New(log *slog.Logger) *Hooks {
	if log == nil {
		log = slog.Default()
	}
	return &Hooks{
		sessionKeys: make(map[uint32]*[KeySize]byte),
		log:         log.With("component", "security"),
	}
}

// SetSessionKey installs the symmetric key negotiated for sessionID.
func (h *Hooks) SetSessionKey(sessionID uint32, key [KeySize]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := key
	h.sessionKeys[sessionID] = &k
}

// DropSessionKey removes a session's key once the session ends.
func (h *Hooks) DropSessionKey(sessionID uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessionKeys, sessionID)
}

// SetGroupKey installs the key used for sessionless and global-broadcast
// traffic, which has no per-session key to fall back on.
func (h *Hooks) SetGroupKey(key [KeySize]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := key
	h.groupKey = &k
}

func (h *Hooks) keyFor(msg *wire.Message) *[KeySize]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if arg, ok := msg.Header.Get(wire.FieldSessionID); ok {
		if k, ok := h.sessionKeys[arg.Uint32]; ok {
			return k
		}
	}
	return h.groupKey
}

// Encrypt replaces msg.Args with a single opaque ciphertext blob sealed
// under the message's session key (falling back to the group key for
// sessionless traffic) and sets FlagEncrypted. It does not look at the
// message's interface or its security policy: it encrypts whatever it is
// given, and callers decide upstream whether to call it
// (proxy.requiresEncryption, dispatch's inbound check).
func (h *Hooks) Encrypt(msg *wire.Message) error {
	key := h.keyFor(msg)
	if key == nil {
		return ErrNoKey
	}

	var plaintext bytes.Buffer
	if err := gob.NewEncoder(&plaintext).Encode(msg.Args); err != nil {
		return fmt.Errorf("security: encode args: %w", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("security: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext.Bytes(), &nonce, key)

	msg.Args = []wire.Arg{{Type: wire.TypeArray, ArraySig: wire.Signature("y"), Array: bytesToArgs(sealed)}}
	msg.Flags |= wire.FlagEncrypted
	return nil
}

// Decrypt reverses Encrypt: it opens the sealed blob under the
// appropriate key and replaces msg.Args with the recovered argument
// list, clearing FlagEncrypted.
func (h *Hooks) Decrypt(msg *wire.Message) error {
	if !msg.Flags.Has(wire.FlagEncrypted) {
		return ErrNotEncrypted
	}
	key := h.keyFor(msg)
	if key == nil {
		return ErrNoKey
	}
	if len(msg.Args) != 1 || msg.Args[0].Type != wire.TypeArray {
		return ErrDecryptFailed
	}
	sealed := argsToBytes(msg.Args[0].Array)
	if len(sealed) < 24 {
		return ErrDecryptFailed
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])

	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, key)
	if !ok {
		return ErrDecryptFailed
	}

	var args []wire.Arg
	if err := gob.NewDecoder(bytes.NewReader(plaintext)).Decode(&args); err != nil {
		return fmt.Errorf("security: decode args: %w", err)
	}
	msg.Args = args
	msg.Flags &^= wire.FlagEncrypted
	return nil
}

// Authorize is the reference policy: a message destined for a keyed
// session (or sessionless/broadcast traffic under the group key) is
// authorized; anything else is rejected. Real deployments will swap
// this for a richer permission check (spec.md §6 leaves the policy
// itself unspecified).
func (h *Hooks) Authorize(msg *wire.Message) error {
	if h.keyFor(msg) != nil {
		return nil
	}
	return ErrNoKey
}

// ReportViolation logs a security-policy violation. The reference
// implementation does not take further action (e.g. tearing down the
// session); deployments that need that should wrap Hooks.
func (h *Hooks) ReportViolation(msg *wire.Message, reason string) {
	sender, _ := msg.Sender()
	member, _ := msg.Member()
	h.log.Warn("security violation", "sender", sender, "member", member, "reason", reason)
}

func bytesToArgs(b []byte) []wire.Arg {
	args := make([]wire.Arg, len(b))
	for i, c := range b {
		args[i] = wire.Arg{Type: wire.TypeByte, Byte: c}
	}
	return args
}

func argsToBytes(args []wire.Arg) []byte {
	b := make([]byte, len(args))
	for i, a := range args {
		b[i] = a.Byte
	}
	return b
}
