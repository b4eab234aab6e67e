package metadata

import (
	"context"
)

// Well-known metadata keys.
const (
	KeyDeviceSecret       = "device_secret"
	KeyGuestAnalysisCount = "guest_analysis_count"
	KeyAccessToken        = "access_token"
	KeyRefreshToken       = "refresh_token"
	KeyUsername           = "username"
)

// Repository is a small durable key/value store for client state that is
// not part of the journal itself: identity material, tokens, counters.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
