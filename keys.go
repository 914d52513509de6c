package authkit

// Store key namespaces. These layouts are fixed for interoperability with
// existing deployments and must not change:
//
//	refresh_token:{subject}   -> raw refresh-token string, TTL = refresh lifetime
//	token_blacklist:{token}   -> "1", TTL = seconds remaining until token expiry
const (
	refreshKeyPrefix   = "refresh_token:"
	blacklistKeyPrefix = "token_blacklist:"

	blacklistSentinel = "1"
)

func refreshRegistryKey(subject string) string {
	return refreshKeyPrefix + subject
}

func blacklistKey(token string) string {
	return blacklistKeyPrefix + token
}
