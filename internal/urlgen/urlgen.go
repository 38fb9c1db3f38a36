// Package urlgen builds absolute links for the HTTP surface.
package urlgen

import (
	"net/url"
	"strings"
)

type Generator struct {
	baseURL string
}

func New(baseURL string) *Generator {
	return &Generator{baseURL: strings.TrimRight(baseURL, "/")}
}

// Absolute joins p onto the base URL.
func (g *Generator) Absolute(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return g.baseURL + p
}

// LinkToPublicShare returns the public URL of a link share.
func (g *Generator) LinkToPublicShare(token string) string {
	return g.Absolute("/s/" + url.PathEscape(token))
}

// LinkToRoute returns the absolute URL of path with query parameters.
func (g *Generator) LinkToRoute(path string, params url.Values) string {
	link := g.Absolute(path)
	if len(params) > 0 {
		link += "?" + params.Encode()
	}
	return link
}
