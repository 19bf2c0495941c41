package api

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"neurodash/internal/database"

	"github.com/pkg/errors"
)

var (
	errRefreshNotFound = errors.New("refresh token not found")
	errRefreshRevoked  = errors.New("refresh token revoked")
	errRefreshExpired  = errors.New("refresh token expired")
)

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// StoreRefreshToken stores a refresh token hash with its expiry.
func StoreRefreshToken(db *sql.DB, userID int, token string, expiresAt time.Time, ttlDays int) error {
	th := hashToken(token)
	expires := database.FormatTime(expiresAt)
	// INSERT OR IGNORE: identical tokens may be minted in quick succession.
	if _, err := db.Exec("INSERT OR IGNORE INTO refresh_tokens (user_id, token_hash, expires_at, ttl_days) VALUES (?, ?, ?, ?)",
		userID, th, expires, ttlDays); err != nil {
		return errors.Wrap(err, "insert refresh token")
	}
	_, err := db.Exec("UPDATE refresh_tokens SET expires_at = ?, ttl_days = ?, revoked = 0 WHERE token_hash = ?", expires, ttlDays, th)
	return errors.Wrap(err, "update refresh token")
}

// ValidateRefreshTokenInDB checks that the token exists, is not revoked and
// not expired. It returns the owner and the token's TTL in days.
func ValidateRefreshTokenInDB(db *sql.DB, token string, now time.Time) (int, int, error) {
	var (
		userID    int
		expiresAt any
		revoked   any
		ttlDays   int
	)
	row := db.QueryRow("SELECT user_id, expires_at, revoked, ttl_days FROM refresh_tokens WHERE token_hash = ?", hashToken(token))
	if err := row.Scan(&userID, &expiresAt, &revoked, &ttlDays); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, errRefreshNotFound
		}
		return 0, 0, errors.Wrap(err, "read refresh token")
	}

	r, ok := database.ParseBool(revoked)
	if !ok {
		// Uninterpretable flag: reject.
		return 0, 0, errors.Errorf("unexpected revoked value %T", revoked)
	}
	if r {
		return 0, 0, errRefreshRevoked
	}
	if t, ok := database.ParseTime(expiresAt); ok && now.After(t) {
		return 0, 0, errRefreshExpired
	}
	return userID, ttlDays, nil
}

// RevokeRefreshToken revokes a refresh token by token string.
func RevokeRefreshToken(db *sql.DB, token string) error {
	_, err := db.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?", hashToken(token))
	return errors.Wrap(err, "revoke refresh token")
}

// RevokeUserRefreshTokens revokes every refresh token of userID.
func RevokeUserRefreshTokens(db *sql.DB, userID int) error {
	_, err := db.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID)
	return errors.Wrap(err, "revoke user refresh tokens")
}
