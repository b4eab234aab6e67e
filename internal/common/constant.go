package common

// AuthorizationHeader is the HTTP header carrying the bearer access token on
// outbound requests.
const AuthorizationHeader = "Authorization"

// ClientRequestIDHeader carries the idempotency token on entry-create
// requests so the backend can deduplicate retries.
const ClientRequestIDHeader = "X-Client-Request-Id"
