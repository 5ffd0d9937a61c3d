package local

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// keyRing holds the signing keys recovered from mnemonics, by address.
type keyRing struct {
	keys map[string]ed25519.PrivateKey
	mu   sync.RWMutex
}

// newKeyRing recovers one key per 25-word mnemonic.
func newKeyRing(mnemonics []string) (*keyRing, error) {
	if len(mnemonics) == 0 {
		return nil, ErrNoKeys
	}

	kr := &keyRing{
		keys: make(map[string]ed25519.PrivateKey, len(mnemonics)),
	}
	for i, m := range mnemonics {
		sk, err := mnemonic.ToPrivateKey(m)
		if err != nil {
			return nil, fmt.Errorf("mnemonic %d: %w", i, err)
		}

		acct, err := crypto.AccountFromPrivateKey(sk)
		if err != nil {
			return nil, fmt.Errorf("mnemonic %d: %w", i, err)
		}

		kr.keys[acct.Address.String()] = sk
	}

	return kr, nil
}

// addresses returns the addresses the ring can sign for, sorted.
func (kr *keyRing) addresses() []string {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	addrs := maps.Keys(kr.keys)
	slices.Sort(addrs)

	return addrs
}

// key returns the private key for an address.
func (kr *keyRing) key(address string) (ed25519.PrivateKey, bool) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	sk, ok := kr.keys[address]
	return sk, ok
}
