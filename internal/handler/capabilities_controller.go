package handler

import (
	"context"
	"net/http"
)

// CapabilitySource reports the capability document of the registered apps.
type CapabilitySource interface {
	Capabilities(ctx context.Context) map[string]any
}

type CapabilitiesController struct {
	source CapabilitySource
}

func NewCapabilitiesController(source CapabilitySource) *CapabilitiesController {
	return &CapabilitiesController{source: source}
}

func (c *CapabilitiesController) Show(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"capabilities": c.source.Capabilities(r.Context()),
	})
}
