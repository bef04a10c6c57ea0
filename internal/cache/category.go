package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Category is the first segment of every cache key.
type Category string

const (
	CategoryProducts   Category = "products"
	CategoryCategories Category = "categories"
	CategoryStats      Category = "stats"
	CategoryUser       Category = "user"
	CategorySearch     Category = "search"
)

// Categories lists every known category in a stable order.
func Categories() []Category {
	return []Category{CategoryProducts, CategoryCategories, CategoryStats, CategoryUser, CategorySearch}
}

// ParseCategory returns the Category named s, or false if s is not one.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// CategoryOf returns the category segment of key. It may not be a known category.
func CategoryOf(key string) Category {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return Category(key[:i])
	}
	return Category(key)
}

// Params are the query parameters folded into a key.
type Params map[string]interface{}

// keyEscaper percent-encodes the key separators inside parameter values.
var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A", "|", "%7C")

// EscapeKeyPart makes s safe to embed as one segment of a key: it cannot
// contain ':' or '|' afterwards. Strings without '%', ':' or '|' are unchanged.
func EscapeKeyPart(s string) string {
	return keyEscaper.Replace(s)
}

// GenerateKey builds <category>:<identifier>[:<k1>:<v1>|<k2>:<v2>...].
// Parameters are sorted by name so argument order never changes the key.
// Names and values are escaped with EscapeKeyPart so distinct params never
// collide.
func GenerateKey(category Category, identifier string, params Params) string {
	base := string(category) + ":" + identifier
	if len(params) == 0 {
		return base
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = EscapeKeyPart(name) + ":" + EscapeKeyPart(fmt.Sprint(params[name]))
	}
	return base + ":" + strings.Join(parts, "|")
}

// CheckPrefixCollisions fails if one category name is a string prefix of
// another; prefix invalidation of the shorter one would also hit the longer.
func CheckPrefixCollisions(categories []Category) error {
	for i, a := range categories {
		for j, b := range categories {
			if i != j && strings.HasPrefix(string(b), string(a)) {
				return fmt.Errorf("cache category %q is a prefix of %q", a, b)
			}
		}
	}
	return nil
}

// TTL pairs the remote and local lifetimes of a category.
type TTL struct {
	Remote time.Duration `json:"remote" yaml:"remote"`
	Local  time.Duration `json:"local" yaml:"local"`
}

// Policy maps categories to TTLs. The zero value falls back to DefaultTTL
// for everything.
type Policy struct {
	categories map[Category]TTL
	fallback   TTL
}

// DefaultTTL applies to keys whose category has no entry in the policy.
var DefaultTTL = TTL{Remote: time.Hour, Local: 5 * time.Minute}

// DefaultPolicy returns the stock per-category TTL table.
func DefaultPolicy() Policy {
	return Policy{
		categories: map[Category]TTL{
			CategoryProducts:   {Remote: time.Hour, Local: 5 * time.Minute},
			CategoryCategories: {Remote: 2 * time.Hour, Local: 10 * time.Minute},
			CategoryStats:      {Remote: 15 * time.Minute, Local: 3 * time.Minute},
			CategoryUser:       {Remote: 30 * time.Minute, Local: 5 * time.Minute},
			CategorySearch:     {Remote: 10 * time.Minute, Local: 2 * time.Minute},
		},
		fallback: DefaultTTL,
	}
}

// With returns a copy of p with category's TTL replaced. Local is clamped to Remote.
func (p Policy) With(category Category, ttl TTL) Policy {
	next := Policy{categories: make(map[Category]TTL, len(p.categories)+1), fallback: p.fallback}
	for c, t := range p.categories {
		next.categories[c] = t
	}
	next.categories[category] = clampTTL(ttl)
	return next
}

// WithFallback returns a copy of p using ttl for unknown categories.
func (p Policy) WithFallback(ttl TTL) Policy {
	next := p.With("", TTL{})
	delete(next.categories, "")
	next.fallback = clampTTL(ttl)
	return next
}

// For returns the TTL pair of category.
func (p Policy) For(category Category) TTL {
	if ttl, ok := p.categories[category]; ok {
		return ttl
	}
	if p.fallback.Remote <= 0 {
		return DefaultTTL
	}
	return p.fallback
}

func clampTTL(ttl TTL) TTL {
	if ttl.Remote <= 0 {
		ttl.Remote = DefaultTTL.Remote
	}
	if ttl.Local <= 0 {
		ttl.Local = DefaultTTL.Local
	}
	if ttl.Local > ttl.Remote {
		ttl.Local = ttl.Remote
	}
	return ttl
}
