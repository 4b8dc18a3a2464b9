package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/willow/internal/config"
	"github.com/hpungsan/willow/internal/ops"
	"github.com/hpungsan/willow/internal/session"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"profile", "avatar"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"profile_list": {
		def:     profileListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileList },
	},
	"profile_create": {
		def:     profileCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileCreate },
	},
	"profile_delete": {
		def:     profileDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileDelete },
	},
	"profile_select": {
		def:     profileSelectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileSelect },
	},
	"profile_current": {
		def:     profileCurrentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileCurrent },
	},
	"avatar_get": {
		def:     avatarGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAvatarGet },
	},
	"avatar_save": {
		def:     avatarSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAvatarSave },
	},
	"avatar_history": {
		def:     avatarHistoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAvatarHistory },
	},
	"avatar_repair": {
		def:     avatarRepairToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAvatarRepair },
	},
	"avatar_catalog": {
		def:     avatarCatalogToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAvatarCatalog },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "avatar_save" → "avatar").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Willow tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(core *ops.Core, sessions session.Backend, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"willow",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(core, sessions, cfg)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(core *ops.Core, sessions session.Backend, cfg *config.Config, version string) error {
	s := NewServer(core, sessions, cfg, version)
	return server.ServeStdio(s)
}
