// Package identity tracks who the client is acting as: an anonymous guest
// identified by a device fingerprint, or an authenticated user at an
// entitlement tier. Components that gate on auth mode or tier take a
// *Session and read the current identity at call time.
package identity

// Tier is the entitlement tier governing quota allowances.
type Tier string

const (
	TierFree     Tier = "free"
	TierPremium  Tier = "premium"
	TierLifetime Tier = "lifetime"
)

// Paid reports whether the tier short-circuits quota checks.
func (t Tier) Paid() bool {
	return t == TierPremium || t == TierLifetime
}

// Kind distinguishes guest and authenticated identities.
type Kind string

const (
	KindGuest Kind = "guest"
	KindUser  Kind = "user"
)

// Identity is an immutable snapshot of who the client currently is.
type Identity struct {
	Kind        Kind
	UserID      string
	Fingerprint string
	Tier        Tier
}

// Guest reports whether this identity is an anonymous guest.
func (i Identity) Guest() bool { return i.Kind == KindGuest }

// OwnerID returns the identifier the backend scopes entries by: the user id
// for authenticated identities, the device fingerprint for guests.
func (i Identity) OwnerID() string {
	if i.Kind == KindUser {
		return i.UserID
	}
	return i.Fingerprint
}
