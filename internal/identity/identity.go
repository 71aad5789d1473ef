// Package identity implements Hotelly's PII-free contact identity
// (spec §4.3): a non-reversible contact_hash derived from the inbound
// channel identifier, and a short-lived AES-256-GCM vault that is the
// only place the provider's routable identifier is ever stored. The
// hash and vault keys are process-scoped secrets that must match
// byte-for-byte across the ingress and worker roles (spec §5).
package identity

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelly/hotelly/internal/apperr"
)

// vaultTTL is the fixed 24h window a contact ref remains readable
// before it is treated as expired (spec §3 "Contact ref").
const vaultTTL = 24 * time.Hour

// ContactHash computes the non-reversible, 32-character identifier
// for an inbound channel contact: base64url-without-padding of
// HMAC-SHA-256 over "{property_id}|{channel}|{sender_id}", truncated
// to 32 characters (spec §4.3).
func ContactHash(hashKey []byte, propertyID, channel, senderID string) string {
	mac := hmac.New(sha256.New, hashKey)
	mac.Write([]byte(fmt.Sprintf("%s|%s|%s", propertyID, channel, senderID)))
	sum := mac.Sum(nil)
	encoded := base64.RawURLEncoding.EncodeToString(sum)
	if len(encoded) > 32 {
		encoded = encoded[:32]
	}
	return encoded
}

// Vault reads and writes the AES-256-GCM-encrypted routable identifier
// keyed by (property_id, channel, contact_hash).
type Vault struct {
	pool *pgxpool.Pool
	key  []byte // 32 bytes
}

func NewVault(pool *pgxpool.Pool, key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("vault key must be 32 bytes, got %d", len(key))
	}
	return &Vault{pool: pool, key: key}, nil
}

// Write encrypts routableID and upserts it with a fresh 24h TTL.
// Ingress-only (spec §4.3).
func (v *Vault) Write(ctx context.Context, propertyID, channel, contactHash, routableID string) error {
	ciphertext, err := v.encrypt(routableID)
	if err != nil {
		return apperr.Permanent(apperr.CodeMissingConfig, "vault encryption failed: "+err.Error())
	}
	_, err = v.pool.Exec(ctx, `
		INSERT INTO contact_refs (property_id, channel, contact_hash, ciphertext, expires_at)
		VALUES ($1, $2, $3, $4, now() + $5::interval)
		ON CONFLICT (property_id, channel, contact_hash)
		DO UPDATE SET ciphertext = EXCLUDED.ciphertext, expires_at = EXCLUDED.expires_at`,
		propertyID, channel, contactHash, ciphertext, vaultTTL.String())
	if err != nil {
		return apperr.Transient(apperr.CodeTransientFailure, "contact_refs upsert failed", err)
	}
	return nil
}

// Read decrypts the routable identifier for (property_id, channel,
// contact_hash). If no non-expired row exists, delivery must terminate
// permanently with contact_ref_not_found (spec §4.3) — the returned
// error is already classed ClassPermanent so callers can pass it
// straight through to the task retry contract.
func (v *Vault) Read(ctx context.Context, propertyID, channel, contactHash string) (string, error) {
	var ciphertext []byte
	err := v.pool.QueryRow(ctx, `
		SELECT ciphertext FROM contact_refs
		WHERE property_id = $1 AND channel = $2 AND contact_hash = $3 AND expires_at > now()`,
		propertyID, channel, contactHash,
	).Scan(&ciphertext)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", apperr.Permanent(apperr.CodeContactRefNotFound, "no non-expired contact ref")
		}
		return "", apperr.Transient(apperr.CodeTransientFailure, "contact_refs read failed", err)
	}
	routableID, err := v.decrypt(ciphertext)
	if err != nil {
		// Authentication failure here signals the vault key mismatched
		// between ingress and worker — a hard operational incident, not a
		// missing-ref case.
		return "", apperr.Permanent(apperr.CodeMissingConfig, "vault decryption failed: key mismatch or corrupt ciphertext")
	}
	return routableID, nil
}

func (v *Vault) encrypt(plaintext string) ([]byte, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (v *Vault) decrypt(ciphertext []byte) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
