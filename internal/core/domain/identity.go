package domain

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unique"

	"github.com/cespare/xxhash/v2"
)

// ModuleID is the canonical identity of a module: an absolute local path or an
// absolute http(s) URL. It is interned, so equal identities compare equal with ==
// and are cheap to use as map keys.
type ModuleID struct {
	h unique.Handle[string]
}

// NewLocalID creates a ModuleID for an absolute filesystem path.
func NewLocalID(p string) ModuleID {
	return ModuleID{h: unique.Make(filepath.Clean(p))}
}

// NewRemoteID creates a ModuleID for an already canonical http(s) URL.
func NewRemoteID(u string) ModuleID {
	return ModuleID{h: unique.Make(u)}
}

// ParseModuleID turns the string form of an identity back into a ModuleID.
func ParseModuleID(s string) ModuleID {
	if hasRemoteScheme(s) {
		return NewRemoteID(s)
	}
	return NewLocalID(s)
}

// String returns the identity as a path or URL.
func (id ModuleID) String() string {
	if id.IsZero() {
		return ""
	}
	return id.h.Value()
}

// IsZero reports whether id is the zero value.
func (id ModuleID) IsZero() bool {
	return id == ModuleID{}
}

// IsRemote reports whether the module is fetched over http(s).
func (id ModuleID) IsRemote() bool {
	return !id.IsZero() && hasRemoteScheme(id.h.Value())
}

// Key returns a short, stable name for the module derived from its identity.
// It is used to name cache files and emitted module blocks.
func (id ModuleID) Key() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(id.String()))
}

// Dir returns the directory of a local module.
func (id ModuleID) Dir() string {
	if id.IsRemote() {
		return ""
	}
	return filepath.Dir(id.String())
}

// Base returns the last path element of the identity, without query or fragment.
func (id ModuleID) Base() string {
	if !id.IsRemote() {
		return filepath.Base(id.String())
	}
	u, err := url.Parse(id.String())
	if err != nil || u.Path == "" || u.Path == "/" {
		return "index.js"
	}
	return path.Base(u.Path)
}

// DisplayName renders the identity for humans: local modules relative to root
// when possible, remote modules as their URL.
func (id ModuleID) DisplayName(root string) string {
	if id.IsRemote() || root == "" {
		return id.String()
	}
	rel, err := filepath.Rel(root, id.String())
	if err != nil || strings.HasPrefix(rel, "..") {
		return id.String()
	}
	return filepath.ToSlash(rel)
}

// MarshalText implements encoding.TextMarshaler.
func (id ModuleID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ModuleID) UnmarshalText(text []byte) error {
	*id = ParseModuleID(string(text))
	return nil
}

func hasRemoteScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
