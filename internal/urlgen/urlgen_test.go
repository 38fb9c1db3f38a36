package urlgen

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerator(t *testing.T) {
	g := New("http://localhost:8080/")

	assert.Equal(t, "http://localhost:8080/s/abc", g.LinkToPublicShare("abc"))
	assert.Equal(t, "http://localhost:8080/api/shares", g.Absolute("api/shares"))
	assert.Equal(t, "http://localhost:8080/api/shares?shared_with_me=true",
		g.LinkToRoute("/api/shares", url.Values{"shared_with_me": {"true"}}))
	assert.Equal(t, "http://localhost:8080/login", g.LinkToRoute("/login", nil))
}
