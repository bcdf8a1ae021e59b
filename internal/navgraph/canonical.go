// internal/navgraph/canonical.go
package navgraph

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalURL is a website URL reduced to the parts that identify a page.
type CanonicalURL struct {
	Scheme string
	Host   string // lowercase, no "www.", no default port
	Path   string // cleaned, never empty, no trailing slash except for "/"
}

// Canonicalize normalises a website URL. A missing scheme means https.
// Query and fragment are dropped.
func Canonicalize(rawURL string) (CanonicalURL, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return CanonicalURL{}, fmt.Errorf("empty website URL")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + strings.TrimPrefix(s, "//")
	}

	u, err := url.Parse(s)
	if err != nil {
		return CanonicalURL{}, fmt.Errorf("invalid website URL %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	hostname := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	hostname = strings.TrimPrefix(hostname, "www.")
	if hostname == "" {
		return CanonicalURL{}, fmt.Errorf("website URL %q has no host", rawURL)
	}

	host := hostname
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host = net.JoinHostPort(hostname, port)
	}

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	p = path.Clean(p)

	return CanonicalURL{Scheme: scheme, Host: host, Path: p}, nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// String renders scheme://host/path.
func (c CanonicalURL) String() string {
	return c.Scheme + "://" + c.Host + c.Path
}

// Hostname is Host without any port.
func (c CanonicalURL) Hostname() string {
	if h, _, err := net.SplitHostPort(c.Host); err == nil {
		return strings.Trim(h, "[]")
	}
	return c.Host
}

// SiteKey names the graph document of the site. Colons are not portable in
// file names, so the port separator becomes an underscore.
func (c CanonicalURL) SiteKey() string {
	return strings.NewReplacer(":", "_", "[", "", "]", "").Replace(c.Host)
}

// Registrable returns the eTLD+1 of the host, or the bare hostname when it
// has none (IP addresses, localhost).
func (c CanonicalURL) Registrable() string {
	return registrable(c.Hostname())
}

func registrable(hostname string) string {
	if net.ParseIP(hostname) != nil {
		return hostname
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return hostname
	}
	return d
}

// SiteKey canonicalises rawURL and returns its document key.
func SiteKey(rawURL string) (string, error) {
	c, err := Canonicalize(rawURL)
	if err != nil {
		return "", err
	}
	return c.SiteKey(), nil
}

// hostnameFromKey strips a trailing _port from a document key.
func hostnameFromKey(key string) string {
	i := strings.LastIndexByte(key, '_')
	if i < 0 {
		return key
	}
	port := key[i+1:]
	if port == "" {
		return key
	}
	for _, r := range port {
		if r < '0' || r > '9' {
			return key
		}
	}
	return key[:i]
}

// parentKeys lists the parent domains of a hostname, nearest first, stopping
// at the registrable domain.
func parentKeys(hostname string) []string {
	reg := registrable(hostname)
	if reg == hostname || !strings.HasSuffix(hostname, "."+reg) {
		return nil
	}
	var out []string
	h := hostname
	for {
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
		out = append(out, h)
		if h == reg {
			break
		}
	}
	return out
}
