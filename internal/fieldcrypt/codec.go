// Package fieldcrypt encrypts and decrypts personally identifiable fields at
// store boundaries. Values are tagged so encrypted and legacy-plaintext data
// can coexist in the same column without a migration.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// marker prefixes every ciphertext this codec produces. Values without it are
// treated as legacy plaintext and passed through unchanged.
const marker = "enc::"

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

// State classifies the outcome of a decryption attempt.
type State int

const (
	// StatePlain means the value carried no ciphertext marker and was
	// returned as-is (legacy plaintext, or empty).
	StatePlain State = iota
	// StateDecrypted means the value was a valid ciphertext and Text holds
	// the recovered plaintext.
	StateDecrypted
	// StateCorrupt means the value carried the marker but failed to decrypt;
	// Text holds the original input unchanged.
	StateCorrupt
)

// Result is the tagged outcome of DecryptTagged, letting callers distinguish
// corruption from legacy plaintext instead of silently displaying ciphertext.
type Result struct {
	Text  string
	State State
}

// Codec performs AES-256-GCM field encryption with a fixed process-wide key.
type Codec struct {
	key        []byte
	logger     *slog.Logger
	onFailOpen func()
}

// Option configures a Codec.
type Option func(*Codec)

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

// WithFailOpenHook registers a callback invoked on every fail-open decrypt;
// the process wires a metrics counter here.
func WithFailOpenHook(fn func()) Option {
	return func(c *Codec) {
		c.onFailOpen = fn
	}
}

// New builds a Codec from the configured secret. A secret of exactly 32 bytes
// is used as the key verbatim; anything else is stretched through SHA-256 so
// operators can configure an arbitrary passphrase.
func New(secret string, opts ...Option) *Codec {
	var key []byte
	if len(secret) == keySize {
		key = []byte(secret)
	} else {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	}
	c := &Codec{key: key, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt seals plain and returns a tagged, base64-encoded ciphertext.
// Empty input is returned unchanged so nullable columns stay nullable.
func (c *Codec) Encrypt(plain string) (string, error) {
	if plain == "" {
		return plain, nil
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plain), nil)
	// gcm.Seal appends the tag to the ciphertext; the wire layout is
	// nonce || tag || ciphertext to match the historical data format.
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	buf := make([]byte, 0, nonceSize+tagSize+len(ciphertext))
	buf = append(buf, nonce...)
	buf = append(buf, tag...)
	buf = append(buf, ciphertext...)
	return marker + base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt is the fail-open boundary form: it always returns a usable string.
// Legacy plaintext and empty values pass through unchanged; a corrupt
// ciphertext is logged and returned unchanged rather than raising, trading
// confidentiality for availability at display boundaries.
func (c *Codec) Decrypt(value string) string {
	return c.DecryptTagged(value).Text
}

// DecryptTagged decrypts value and reports which of the three outcomes
// occurred, so callers that care can surface corruption explicitly.
func (c *Codec) DecryptTagged(value string) Result {
	if value == "" || !strings.HasPrefix(value, marker) {
		return Result{Text: value, State: StatePlain}
	}
	plain, err := c.open(strings.TrimPrefix(value, marker))
	if err != nil {
		c.logger.Warn("field decryption failed, returning value unchanged", "error", err)
		if c.onFailOpen != nil {
			c.onFailOpen()
		}
		return Result{Text: value, State: StateCorrupt}
	}
	return Result{Text: plain, State: StateDecrypted}
}

func (c *Codec) open(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < nonceSize+tagSize {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(raw))
	}
	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ciphertext := raw[nonceSize+tagSize:]

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}
	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plain), nil
}
