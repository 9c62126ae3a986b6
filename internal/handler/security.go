package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/zayra/storefront/internal/domain/auth"
)

// adminKeyHeader carries the plaintext admin key on admin requests.
const adminKeyHeader = "X-Admin-Key"

// Security authenticates admin requests via HMAC-SHA256 hashed keys.
// Only the hash is stored; the pepper keeps a leaked table useless
// without the server config.
type Security struct {
	keys   auth.Repository
	pepper []byte
}

// NewSecurity creates a Security guard with the given admin key
// repository and HMAC pepper.
func NewSecurity(keys auth.Repository, pepper []byte) *Security {
	return &Security{keys: keys, pepper: pepper}
}

// HashKey computes the peppered HMAC-SHA256 hex digest of a plaintext
// admin key. The seeding tool uses the same function so stored hashes
// and lookups always agree.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// RequireAdminKey guards admin routes. The incoming key is hashed,
// looked up, and compared in constant time to prevent timing
// side-channels.
func (s *Security) RequireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(adminKeyHeader)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing admin key")
			return
		}

		mac := hmac.New(sha256.New, s.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := s.keys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
