// Package keys builds the store keys of one leaderboard namespace.
//
// Layout for namespace "lb":
//
//	lb:global          sorted set, user -> total score
//	lb:entity:<E>      sorted set, user -> score within entity E
//	lb:meta:entity     hash, user -> entity
//	lb:meta:solved     hash, user -> problems solved
//	lb:meta:username   hash, user -> display name
package keys

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultNamespace is used when a Resolver is built from an empty namespace.
const DefaultNamespace = "leaderboard"

const sep = ":"

// ErrNamespace is returned by Validate for namespaces that cannot be
// isolated from their neighbours.
var ErrNamespace = errors.New("invalid namespace")

// Resolver derives keys from a fixed namespace. The zero value is not usable;
// construct one with New.
type Resolver struct {
	ns string
}

// New returns a Resolver for namespace. Surrounding whitespace and trailing
// separators are dropped so "lb" and "lb:" address the same keys.
func New(namespace string) Resolver {
	ns := strings.TrimRight(strings.TrimSpace(namespace), sep)
	if ns == "" {
		ns = DefaultNamespace
	}
	return Resolver{ns: ns}
}

// Validate reports whether namespace, once normalized like New does, is
// usable. A separator inside the namespace is rejected: "lb" would otherwise
// scan and delete the keys of "lb:eu", and "lb:entity" would alias the
// entity sets of "lb". Glob characters are rejected because SCAN MATCH
// interprets them.
func Validate(namespace string) error {
	ns := strings.TrimRight(strings.TrimSpace(namespace), sep)
	switch {
	case ns == "":
		return fmt.Errorf("%w: empty", ErrNamespace)
	case strings.Contains(ns, sep):
		return fmt.Errorf("%w: %q contains %q", ErrNamespace, ns, sep)
	case strings.ContainsAny(ns, "*?[]\\"):
		return fmt.Errorf("%w: %q contains glob characters", ErrNamespace, ns)
	}
	return nil
}

// Namespace returns the normalized namespace.
func (r Resolver) Namespace() string { return r.ns }

// Prefix is the SCAN prefix of the namespace. For a namespace that passes
// Validate no other valid namespace shares it; use Owns to filter scans
// against keys written outside the engine.
func (r Resolver) Prefix() string { return r.ns + sep }

// Owns reports whether key is one of the keys this resolver builds.
func (r Resolver) Owns(key string) bool {
	rest, ok := strings.CutPrefix(key, r.ns+sep)
	if !ok {
		return false
	}
	switch rest {
	case "global", "meta" + sep + "entity", "meta" + sep + "solved", "meta" + sep + "username":
		return true
	}
	entity, ok := strings.CutPrefix(rest, "entity"+sep)
	return ok && entity != ""
}

func (r Resolver) Global() string { return r.ns + sep + "global" }

// Entity returns the sorted-set key for one entity.
func (r Resolver) Entity(entity string) string { return r.ns + sep + "entity" + sep + entity }

func (r Resolver) UserEntity() string   { return r.ns + sep + "meta" + sep + "entity" }
func (r Resolver) UserSolved() string   { return r.ns + sep + "meta" + sep + "solved" }
func (r Resolver) UserUsername() string { return r.ns + sep + "meta" + sep + "username" }

// IsEntityKey reports whether key is an entity set of this namespace and returns the entity.
func (r Resolver) IsEntityKey(key string) (string, bool) {
	p := r.ns + sep + "entity" + sep
	if !strings.HasPrefix(key, p) {
		return "", false
	}
	return key[len(p):], true
}
