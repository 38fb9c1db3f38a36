package share

import (
	"context"
	"testing"

	"github.com/MikhailRaia/files-sharing/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilities(t *testing.T) {
	policy := config.Default().Sharing
	policy.DefaultExpireDays = 7
	policy.EnforceExpireDate = true
	policy.IncomingServer2Srv = false

	caps := NewCapabilities(policy).Capabilities(context.Background())

	fs, ok := caps["files_sharing"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, fs["api_enabled"])

	public := fs["public"].(map[string]any)
	assert.Equal(t, true, public["enabled"])
	assert.Equal(t, map[string]any{"enabled": true, "days": 7, "enforced": true}, public["expire_date"])
	assert.Equal(t, map[string]any{"outgoing": true, "incoming": false}, fs["federation"])
}

func TestCapabilities_LinksDisabled(t *testing.T) {
	policy := config.Default().Sharing
	policy.AllowLinks = false

	caps := NewCapabilities(policy).Capabilities(context.Background())
	public := caps["files_sharing"].(map[string]any)["public"].(map[string]any)

	assert.Equal(t, map[string]any{"enabled": false}, public)
}
