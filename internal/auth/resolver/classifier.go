package resolver

import (
	"fmt"

	"github.com/gobwas/glob"

	"healthbff/internal/principal"
)

// Category is the authentication requirement attached to a path.
type Category string

const (
	CategoryPublic      Category = "PUBLIC"
	CategoryDualAuth    Category = "DUAL_AUTH"
	CategorySessionOnly Category = "SESSION_ONLY"
	CategoryProxyOnly   Category = "PROXY_ONLY"
)

// Accepts reports whether a context of type t may use a path in c.
func (c Category) Accepts(t principal.AuthType) bool {
	switch c {
	case CategoryPublic, CategoryDualAuth:
		return true
	case CategorySessionOnly:
		return t == principal.AuthTypeHSID
	case CategoryProxyOnly:
		return t == principal.AuthTypeProxy
	default:
		return false
	}
}

// Patterns are glob path templates per category. "*" matches one path
// segment and "**" any number of segments.
type Patterns struct {
	Public      []string
	DualAuth    []string
	SessionOnly []string
	ProxyOnly   []string
}

type compiled struct {
	category Category
	globs    []glob.Glob
}

// Classifier maps a request path to its category. Categories are tried
// PUBLIC, DUAL_AUTH, SESSION_ONLY, PROXY_ONLY; unmatched paths are DUAL_AUTH.
type Classifier struct {
	ordered []compiled
}

func NewClassifier(p Patterns) (*Classifier, error) {
	c := &Classifier{}
	for _, group := range []struct {
		category Category
		patterns []string
	}{
		{CategoryPublic, p.Public},
		{CategoryDualAuth, p.DualAuth},
		{CategorySessionOnly, p.SessionOnly},
		{CategoryProxyOnly, p.ProxyOnly},
	} {
		entry := compiled{category: group.category}
		for _, pattern := range group.patterns {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", group.category, pattern, err)
			}
			entry.globs = append(entry.globs, g)
		}
		c.ordered = append(c.ordered, entry)
	}
	return c, nil
}

func (c *Classifier) Classify(path string) Category {
	for _, entry := range c.ordered {
		for _, g := range entry.globs {
			if g.Match(path) {
				return entry.category
			}
		}
	}
	return CategoryDualAuth
}
