package keyring

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"unifex/pkg/core"
)

// KeyRing holds several API keys for one account and decides which one signs
// the next private request.
type KeyRing struct {
	mu       sync.RWMutex
	keys     []*APIKey
	current  int
	strategy RotationStrategy
	logger   zerolog.Logger
}

type APIKey struct {
	ID         string
	Key        string
	Secret     string
	Disabled   bool
	LastUsed   time.Time
	ErrorCount int
}

// Credentials converts the key into the form the signer consumes.
func (k *APIKey) Credentials() core.Credentials {
	return core.Credentials{APIKey: k.Key, SecretKey: k.Secret}
}

type RotationStrategy int

const (
	// RotationRoundRobin advances after every acquired key.
	RotationRoundRobin RotationStrategy = iota
	// RotationOnError advances after any classified rejection tied to the key.
	RotationOnError
	// RotationOnRateLimit advances only when the current key is throttled.
	RotationOnRateLimit
)

type Option func(*KeyRing)

func WithLogger(logger zerolog.Logger) Option {
	return func(k *KeyRing) {
		k.logger = logger
	}
}

func NewKeyRing(keys []*APIKey, strategy RotationStrategy, opts ...Option) *KeyRing {
	k := &KeyRing{
		keys:     make([]*APIKey, 0, len(keys)),
		strategy: strategy,
		logger:   zerolog.Nop(),
	}
	for _, key := range keys {
		cp := *key
		k.keys = append(k.keys, &cp)
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Len returns the number of keys, enabled or not.
func (k *KeyRing) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

// Current returns the active key without advancing, or nil when every key
// is disabled.
func (k *KeyRing) Current() *APIKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	idx := k.activeIndex()
	if idx < 0 {
		return nil
	}
	cp := *k.keys[idx]
	return &cp
}

// Acquire returns the credentials for the next request and marks the key used.
func (k *KeyRing) Acquire() (core.Credentials, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	idx := k.activeIndex()
	if idx < 0 {
		return core.Credentials{}, false
	}
	k.current = idx
	key := k.keys[idx]
	key.LastUsed = time.Now()
	creds := key.Credentials()

	if k.strategy == RotationRoundRobin {
		k.advance()
	}
	return creds, true
}

func (k *KeyRing) activeIndex() int {
	for i := 0; i < len(k.keys); i++ {
		idx := (k.current + i) % len(k.keys)
		if !k.keys[idx].Disabled {
			return idx
		}
	}
	return -1
}

func (k *KeyRing) Rotate() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.advance()
}

func (k *KeyRing) advance() {
	if len(k.keys) == 0 {
		return
	}
	start := k.current
	for {
		k.current = (k.current + 1) % len(k.keys)
		if !k.keys[k.current].Disabled || k.current == start {
			return
		}
	}
}

// Report feeds the outcome of a request signed with apiKey back into the
// ring. Authentication failures disable the key outright.
func (k *KeyRing) Report(apiKey string, err error) {
	if err == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	var key *APIKey
	idx := -1
	for i, candidate := range k.keys {
		if candidate.Key == apiKey {
			key, idx = candidate, i
			break
		}
	}
	if key == nil {
		return
	}

	errType := core.ErrorTypeOf(err)
	switch errType {
	case core.ErrorTypeAuthentication, core.ErrorTypeAccountSuspended:
		key.ErrorCount++
		key.Disabled = true
		k.logger.Warn().Str("key", key.String()).Str("error_type", errType.String()).Msg("api key disabled")
	case core.ErrorTypeRateLimit:
		key.ErrorCount++
		if k.strategy == RotationOnRateLimit || k.strategy == RotationOnError {
			k.rotateFrom(idx)
		}
	case core.ErrorTypePermissionDenied, core.ErrorTypeInvalidNonce:
		key.ErrorCount++
		if k.strategy == RotationOnError {
			k.rotateFrom(idx)
		}
	default:
		return
	}
	if key.Disabled && k.current == idx {
		k.advance()
	}
}

func (k *KeyRing) rotateFrom(idx int) {
	if k.current == idx {
		k.advance()
		k.logger.Debug().Int("index", k.current).Msg("api key rotated")
	}
}

func (k *KeyRing) Disable(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.keys {
		if key.ID == id {
			key.Disabled = true
			return
		}
	}
}

func (k *KeyRing) Enable(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.keys {
		if key.ID == id {
			key.Disabled = false
			key.ErrorCount = 0
			return
		}
	}
}

func (k *KeyRing) Add(key *APIKey) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, existing := range k.keys {
		if existing.ID == key.ID {
			return
		}
	}
	k.keys = append(k.keys, &APIKey{ID: key.ID, Key: key.Key, Secret: key.Secret})
}

func (k *KeyRing) Remove(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i, key := range k.keys {
		if key.ID == id {
			k.keys = append(k.keys[:i], k.keys[i+1:]...)
			if k.current >= len(k.keys) {
				k.current = 0
			}
			return
		}
	}
}

func (k *APIKey) String() string {
	return fmt.Sprintf("APIKey{ID:%s, Key:%s}", k.ID, maskKey(k.Key))
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
