package cache

import (
	"sort"
	"strings"
)

// Namespace prefixes every cache key so unrelated data in the same Redis
// database is never touched by prefix invalidation.
const Namespace = "gamegate"

// Key identifies a cached upstream result. Two requests for the same logical
// resource produce the same key; transient concerns such as refresh flags or
// the credential used for the call never become part of it.
type Key struct {
	// Resource is the resource type (e.g. "match", "player", "ranking").
	Resource string

	// Params are the identifying parameters (e.g. {"id": "EUW1_4512345"}).
	Params map[string]string
}

// String generates a deterministic cache key string.
// Format: gamegate:resource:param1=val1:param2=val2
//
// Example:
//
//	gamegate:match:id=EUW1_4512345:region=euw1
//
// The resource segment is always colon-terminated, so Prefix(resource)
// covers exactly that type's keys and no other.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(Namespace)
	b.WriteByte(':')
	b.WriteString(k.Resource)
	b.WriteByte(':')

	if len(k.Params) == 0 {
		return b.String()
	}

	// Sort param names for determinism.
	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(k.Params[name])
	}

	return b.String()
}

// Prefix returns the invalidation prefix covering every key of the given
// resource type.
func Prefix(resource string) string {
	return Namespace + ":" + resource + ":"
}
