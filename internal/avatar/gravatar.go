// Package avatar resolves default profile images for new accounts.
package avatar

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

const defaultGravatarBase = "https://www.gravatar.com/avatar/"

var ErrEmptyEmail = errors.New("avatar: email is empty")

// Gravatar builds Gravatar image URLs from email addresses.
type Gravatar struct {
	base     string
	size     int
	fallback string
}

type Option func(*Gravatar)

// WithSize requests a square image of the given pixel size.
func WithSize(px int) Option {
	return func(g *Gravatar) {
		if px > 0 {
			g.size = px
		}
	}
}

// WithFallback sets the image Gravatar serves for unknown emails,
// e.g. "identicon" or "retro".
func WithFallback(fallback string) Option {
	return func(g *Gravatar) {
		g.fallback = fallback
	}
}

func NewGravatar(opts ...Option) *Gravatar {
	g := &Gravatar{base: defaultGravatarBase}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve returns the Gravatar URL for email.
func (g *Gravatar) Resolve(_ context.Context, email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrEmptyEmail
	}

	sum := md5.Sum([]byte(normalized))
	u := g.base + hex.EncodeToString(sum[:])

	q := url.Values{}
	if g.size > 0 {
		q.Set("s", strconv.Itoa(g.size))
	}
	if g.fallback != "" {
		q.Set("d", g.fallback)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u, nil
}
