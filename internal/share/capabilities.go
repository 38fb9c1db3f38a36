package share

import (
	"context"

	"github.com/MikhailRaia/files-sharing/internal/config"
)

// Capabilities describes the sharing features available to clients.
type Capabilities struct {
	policy config.SharingConfig
}

func NewCapabilities(policy config.SharingConfig) *Capabilities {
	return &Capabilities{policy: policy}
}

func (c *Capabilities) Capabilities(ctx context.Context) map[string]any {
	p := c.policy

	public := map[string]any{"enabled": p.Enabled && p.AllowLinks}
	if p.Enabled && p.AllowLinks {
		public["password"] = map[string]any{"enforced": p.EnforceLinkPassword}
		expire := map[string]any{"enabled": p.DefaultExpireDays > 0}
		if p.DefaultExpireDays > 0 {
			expire["days"] = p.DefaultExpireDays
			expire["enforced"] = p.EnforceExpireDate
		}
		public["expire_date"] = expire
	}

	return map[string]any{
		"files_sharing": map[string]any{
			"api_enabled": p.Enabled,
			"public":      public,
			"resharing":   p.AllowResharing,
			"federation": map[string]any{
				"outgoing": p.OutgoingServer2Srv,
				"incoming": p.IncomingServer2Srv,
			},
		},
	}
}
