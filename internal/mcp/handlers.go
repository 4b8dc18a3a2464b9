package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/willow/internal/avatar"
	"github.com/hpungsan/willow/internal/config"
	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/identity"
	"github.com/hpungsan/willow/internal/ops"
	"github.com/hpungsan/willow/internal/session"
)

// Handlers holds dependencies for MCP tool handlers. An MCP server acts for
// the configured user in the configured session.
type Handlers struct {
	core     *ops.Core
	sessions session.Backend
	cfg      *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(core *ops.Core, sessions session.Backend, cfg *config.Config) *Handlers {
	return &Handlers{core: core, sessions: sessions, cfg: cfg}
}

// Request types for each tool

// ProfileCreateRequest represents the arguments for profile_create.
type ProfileCreateRequest struct {
	DisplayName string `json:"display_name"`
	AgeMode     string `json:"age_mode,omitempty"`
	Select      bool   `json:"select,omitempty"`
}

// ProfileRef represents the arguments for tools addressing one profile.
type ProfileRef struct {
	ProfileID string `json:"profile_id,omitempty"`
}

// AvatarSaveRequest represents the arguments for avatar_save.
type AvatarSaveRequest struct {
	ProfileID   string  `json:"profile_id,omitempty"`
	SkinToneID  string  `json:"skin_tone_id"`
	FaceID      string  `json:"face_id"`
	HairID      string  `json:"hair_id"`
	HairColorID string  `json:"hair_color_id"`
	OutfitID    string  `json:"outfit_id"`
	AccessoryID *string `json:"accessory_id,omitempty"`
	Resume      bool    `json:"resume,omitempty"`
}

// AvatarHistoryRequest represents the arguments for avatar_history.
type AvatarHistoryRequest struct {
	ProfileID string `json:"profile_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// scope attaches the configured identity and opens the session pointer.
func (h *Handlers) scope(ctx context.Context) (context.Context, *session.Pointer, error) {
	ptr, err := session.Open(h.sessions, h.cfg.SessionID)
	if err != nil {
		return nil, nil, errors.NewStoreUnavailable("open session", err)
	}
	return identity.WithUser(ctx, h.cfg.User), ptr, nil
}

// HandleProfileList handles the profile_list tool call.
func (h *Handlers) HandleProfileList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, _, err := h.scope(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := h.core.ListProfiles(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileCreate handles the profile_create tool call.
func (h *Handlers) HandleProfileCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx, ptr, err := h.scope(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.core.CreateProfile(ctx, ptr, ops.CreateProfileInput{
		DisplayName: input.DisplayName,
		AgeBand:     input.AgeMode,
		Select:      input.Select,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileDelete handles the profile_delete tool call.
func (h *Handlers) HandleProfileDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx, ptr, err := h.scope(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.core.DeleteProfile(ctx, ptr, ops.DeleteProfileInput{ProfileID: input.ProfileID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileSelect handles the profile_select tool call.
func (h *Handlers) HandleProfileSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx, ptr, err := h.scope(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.core.SelectProfile(ctx, ptr, ops.SelectProfileInput{ProfileID: input.ProfileID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileCurrent handles the profile_current tool call.
func (h *Handlers) HandleProfileCurrent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, ptr, err := h.scope(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := h.core.CurrentProfile(ctx, ptr)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAvatarGet handles the avatar_get tool call.
func (h *Handlers) HandleAvatarGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx, ptr, err := h.scope(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.core.GetActiveAvatar(ctx, ptr, ops.GetAvatarInput{ProfileID: input.ProfileID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAvatarSave handles the avatar_save tool call.
func (h *Handlers) HandleAvatarSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AvatarSaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx, ptr, err := h.scope(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.core.SaveAvatar(ctx, ptr, ops.SaveAvatarInput{
		ProfileID: input.ProfileID,
		Attributes: avatar.Attributes{
			SkinTone:  input.SkinToneID,
			Face:      input.FaceID,
			Hair:      input.HairID,
			HairColor: input.HairColorID,
			Outfit:    input.OutfitID,
			Accessory: input.AccessoryID,
		},
		Resume: input.Resume,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAvatarHistory handles the avatar_history tool call.
func (h *Handlers) HandleAvatarHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AvatarHistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx, ptr, err := h.scope(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.core.AvatarHistory(ctx, ptr, ops.HistoryInput{
		ProfileID: input.ProfileID,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAvatarRepair handles the avatar_repair tool call.
func (h *Handlers) HandleAvatarRepair(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfileRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ctx, ptr, err := h.scope(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.core.RepairAvatar(ctx, ptr, ops.RepairInput{ProfileID: input.ProfileID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAvatarCatalog handles the avatar_catalog tool call.
func (h *Handlers) HandleAvatarCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, _, err := h.scope(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := h.core.Catalog(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var wErr *errors.WillowError
	if stderrors.As(err, &wErr) && wErr.Code != errors.ErrInternal {
		msg := wErr.Message
		if err != error(wErr) {
			// keep wrapper context
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":      wErr.Code,
			"message":   msg,
			"status":    wErr.Status,
			"retryable": wErr.Retryable,
		}
		if wErr.Details != nil {
			errorObj["details"] = wErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
