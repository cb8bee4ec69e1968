package rediskey

import "fmt"

// Key namespaces shared across services.
const (
	RateLimitPrefix = "ratelimit"
	SequencePrefix  = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildRateLimitKey returns "ratelimit:{scope}:{actorKey}"
func BuildRateLimitKey(scope, actorKey string) string {
	return fmt.Sprintf("%s:%s:%s", RateLimitPrefix, scope, actorKey)
}

// BuildSequenceKey returns "seq:{kind}:{owner}:{day}"
func BuildSequenceKey(kind, owner, day string) string {
	return fmt.Sprintf("%s:%s:%s:%s", SequencePrefix, kind, owner, day)
}
