// Package imageref decides whether a client-supplied image reference may be
// stored or fetched. Every photo, model image and fabric image must live on
// one trusted storage origin.
package imageref

import (
	"fmt"
	"net/url"
	"strings"
)

// Origin is a trusted scheme+host pair such as
// https://firebasestorage.googleapis.com.
type Origin struct {
	scheme string
	host   string
}

func ParseOrigin(raw string) (Origin, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Origin{}, fmt.Errorf("imageref: parsing origin %q: %w", raw, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return Origin{}, fmt.Errorf("imageref: origin %q must be an https scheme and host", raw)
	}
	if u.Path != "" && u.Path != "/" {
		return Origin{}, fmt.Errorf("imageref: origin %q must not contain a path", raw)
	}
	return Origin{scheme: u.Scheme, host: strings.ToLower(u.Host)}, nil
}

// MustParseOrigin is ParseOrigin for constants and tests.
func MustParseOrigin(raw string) Origin {
	o, err := ParseOrigin(raw)
	if err != nil {
		panic(err)
	}
	return o
}

func (o Origin) String() string {
	return o.scheme + "://" + o.host
}

// Allows reports whether ref is an absolute URL on this origin. A prefix
// match is not enough: "https://firebasestorage.googleapis.com.evil.test"
// shares the prefix but not the host.
func (o Origin) Allows(ref string) bool {
	if ref == "" || o.host == "" {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == o.scheme && strings.ToLower(u.Host) == o.host && u.User == nil
}

// Usable reports whether an optional reference is set and trusted.
func (o Origin) Usable(ref *string) bool {
	return ref != nil && o.Allows(*ref)
}
