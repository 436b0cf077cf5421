package security

import "time"

// IsExpired reports whether the given expiry instant has passed. The check
// is strict: a record whose lifetime has fully elapsed is expired even if
// the current instant equals expiresAt exactly. A zero time never expires.
func IsExpired(expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !time.Now().Before(expiresAt)
}

// IsExpiringSoon reports whether expiresAt falls within the given threshold
// from now. Used to flag codes and tokens that are about to lapse.
func IsExpiringSoon(expiresAt time.Time, threshold time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().Add(threshold).After(expiresAt)
}
