// Package resolver turns raw import specifiers into canonical module identities.
package resolver

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/zerr"
)

var (
	errEmptySpecifier     = zerr.New("specifier is empty")
	errControlCharacter   = zerr.New("specifier contains a control character")
	errUnsupportedScheme  = zerr.New("unsupported URL scheme")
	errMissingHost        = zerr.New("URL has no host")
	errRemoteFileURL      = zerr.New("file URL must not name a remote host")
	errNetworkPath        = zerr.New("network-path reference needs a URL importer")
	errUnknownImporter    = zerr.New("importer has no location to resolve against")
	errRelativeEntryNoCWD = zerr.New("relative entry path needs a working directory")
)

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// Resolver resolves specifiers relative to their importing module.
// It performs no I/O.
type Resolver struct{}

// New creates a new Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve returns the identity of the module named by specifier as written in importer.
func (r *Resolver) Resolve(specifier string, importer domain.ModuleID) (domain.ModuleID, error) {
	id, err := r.resolve(specifier, importer)
	if err != nil {
		return domain.ModuleID{}, domain.NewError(domain.ErrUnresolvableSpecifier, err,
			"specifier", specifier,
			"importer", importer.String(),
		)
	}
	return id, nil
}

// ResolveEntry resolves the entry argument given on the command line.
// URLs are canonicalized; paths are made absolute against cwd.
func (r *Resolver) ResolveEntry(arg, cwd string) (domain.ModuleID, error) {
	id, err := r.resolveEntry(arg, cwd)
	if err != nil {
		return domain.ModuleID{}, domain.NewError(domain.ErrInvalidEntry, err, "entry", arg)
	}
	return id, nil
}

func (r *Resolver) resolveEntry(arg, cwd string) (domain.ModuleID, error) {
	if err := checkSpecifier(arg); err != nil {
		return domain.ModuleID{}, err
	}
	if schemePattern.MatchString(arg) && !isWindowsDrive(arg) {
		return resolveAbsoluteURL(arg)
	}
	if filepath.IsAbs(arg) {
		return domain.NewLocalID(arg), nil
	}
	if cwd == "" {
		return domain.ModuleID{}, errRelativeEntryNoCWD
	}
	return domain.NewLocalID(filepath.Join(cwd, arg)), nil
}

func (r *Resolver) resolve(specifier string, importer domain.ModuleID) (domain.ModuleID, error) {
	if err := checkSpecifier(specifier); err != nil {
		return domain.ModuleID{}, err
	}

	if schemePattern.MatchString(specifier) && !isWindowsDrive(specifier) {
		return resolveAbsoluteURL(specifier)
	}

	switch {
	case importer.IsRemote():
		return resolveAgainstURL(specifier, importer)
	case !importer.IsZero():
		return resolveAgainstDir(specifier, importer)
	default:
		return domain.ModuleID{}, errUnknownImporter
	}
}

func checkSpecifier(s string) error {
	if strings.TrimSpace(s) == "" {
		return errEmptySpecifier
	}
	for _, c := range s {
		if unicode.IsControl(c) {
			return errControlCharacter
		}
	}
	return nil
}

func isWindowsDrive(s string) bool {
	return len(s) >= 2 && s[1] == ':' && filepath.VolumeName(s) != ""
}

func resolveAbsoluteURL(s string) (domain.ModuleID, error) {
	u, err := url.Parse(s)
	if err != nil {
		return domain.ModuleID{}, err
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return canonicalURL(u)
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return domain.ModuleID{}, zerr.With(errRemoteFileURL, "host", u.Host)
		}
		if u.Path == "" {
			return domain.ModuleID{}, errEmptySpecifier
		}
		return domain.NewLocalID(filepath.FromSlash(u.Path)), nil
	default:
		return domain.ModuleID{}, zerr.With(errUnsupportedScheme, "scheme", u.Scheme)
	}
}

func resolveAgainstURL(specifier string, importer domain.ModuleID) (domain.ModuleID, error) {
	base, err := url.Parse(importer.String())
	if err != nil {
		return domain.ModuleID{}, err
	}
	ref, err := url.Parse(specifier)
	if err != nil {
		return domain.ModuleID{}, err
	}
	return canonicalURL(base.ResolveReference(ref))
}

func resolveAgainstDir(specifier string, importer domain.ModuleID) (domain.ModuleID, error) {
	if strings.HasPrefix(specifier, "//") {
		return domain.ModuleID{}, errNetworkPath
	}
	p := specifier
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return domain.ModuleID{}, errEmptySpecifier
	}
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return domain.NewLocalID(p), nil
	}
	return domain.NewLocalID(filepath.Join(importer.Dir(), p)), nil
}

// canonicalURL normalizes an absolute http(s) URL: lower-case scheme and host,
// no default port, no fragment, no dot segments and a non-empty path.
func canonicalURL(u *url.URL) (domain.ModuleID, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return domain.ModuleID{}, zerr.With(errUnsupportedScheme, "scheme", u.Scheme)
	}
	if u.Host == "" {
		return domain.ModuleID{}, errMissingHost
	}

	// Resolving against an empty base removes dot segments.
	c := (&url.URL{}).ResolveReference(u)
	c.Scheme = scheme
	c.Fragment = ""
	c.RawFragment = ""

	host := strings.ToLower(c.Hostname())
	port := c.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	c.Host = host

	if c.Path == "" {
		c.Path = "/"
		c.RawPath = ""
	}
	return domain.NewRemoteID(c.String()), nil
}
