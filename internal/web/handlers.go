package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/willow/internal/avatar"
	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/ops"
	"github.com/hpungsan/willow/internal/session"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Handlers contains HTTP route handlers for the API.
type Handlers struct {
	core     *ops.Core
	sessions session.Backend
	log      *zap.Logger
}

// pointer opens the session pointer for the request's session cookie.
func (h *Handlers) pointer(r *http.Request) (*session.Pointer, error) {
	ptr, err := session.Open(h.sessions, sessionFrom(r.Context()))
	if err != nil {
		return nil, errors.NewStoreUnavailable("open session", err)
	}
	return ptr, nil
}

// createProfileBody is the body of POST /profiles.
type createProfileBody struct {
	DisplayName string `json:"display_name"`
	AgeMode     string `json:"age_mode"`
	Select      bool   `json:"select"`
}

// saveAvatarBody is the body of PUT /avatar.
type saveAvatarBody struct {
	ProfileID   string  `json:"profile_id"`
	SkinToneID  string  `json:"skin_tone_id"`
	FaceID      string  `json:"face_id"`
	HairID      string  `json:"hair_id"`
	HairColorID string  `json:"hair_color_id"`
	OutfitID    string  `json:"outfit_id"`
	AccessoryID *string `json:"accessory_id"`
	Resume      bool    `json:"resume"`
}

// HandleListProfiles handles GET /profiles.
func (h *Handlers) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.ListProfiles(r.Context())
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleCreateProfile handles POST /profiles.
func (h *Handlers) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var body createProfileBody
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, h.log, err)
		return
	}
	ptr, err := h.pointer(r)
	if err != nil {
		renderError(w, h.log, err)
		return
	}

	p, err := h.core.CreateProfile(r.Context(), ptr, ops.CreateProfileInput{
		DisplayName: body.DisplayName,
		AgeBand:     body.AgeMode,
		Select:      body.Select,
	})
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	w.Header().Set("Location", "/profiles/"+p.ID)
	renderJSON(w, http.StatusCreated, p)
}

// HandleDeleteProfile handles DELETE /profiles/{id}.
func (h *Handlers) HandleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	ptr, err := h.pointer(r)
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	result, err := h.core.DeleteProfile(r.Context(), ptr, ops.DeleteProfileInput{ProfileID: r.PathValue("id")})
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSelectProfile handles POST /profiles/{id}/select.
func (h *Handlers) HandleSelectProfile(w http.ResponseWriter, r *http.Request) {
	ptr, err := h.pointer(r)
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	p, err := h.core.SelectProfile(r.Context(), ptr, ops.SelectProfileInput{ProfileID: r.PathValue("id")})
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, p)
}

// HandleSession handles GET /session: the session's current profile.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	ptr, err := h.pointer(r)
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	result, err := h.core.CurrentProfile(r.Context(), ptr)
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleGetAvatar handles GET /avatar. Clients accepting text/html get a
// rendered avatar card instead of JSON.
func (h *Handlers) HandleGetAvatar(w http.ResponseWriter, r *http.Request) {
	ptr, err := h.pointer(r)
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	result, err := h.core.GetActiveAvatar(r.Context(), ptr, ops.GetAvatarInput{
		ProfileID: r.URL.Query().Get("profile_id"),
	})
	if err != nil {
		renderError(w, h.log, err)
		return
	}

	if wantsHTML(r) {
		renderCard(w, h.log, avatar.Card("Avatar", result.Attributes, result.IsDefault))
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSaveAvatar handles PUT /avatar.
func (h *Handlers) HandleSaveAvatar(w http.ResponseWriter, r *http.Request) {
	var body saveAvatarBody
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, h.log, err)
		return
	}
	ptr, err := h.pointer(r)
	if err != nil {
		renderError(w, h.log, err)
		return
	}

	result, err := h.core.SaveAvatar(r.Context(), ptr, ops.SaveAvatarInput{
		ProfileID: body.ProfileID,
		Attributes: avatar.Attributes{
			SkinTone:  body.SkinToneID,
			Face:      body.FaceID,
			Hair:      body.HairID,
			HairColor: body.HairColorID,
			Outfit:    body.OutfitID,
			Accessory: body.AccessoryID,
		},
		Resume: body.Resume,
	})
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAvatarHistory handles GET /avatar/history.
func (h *Handlers) HandleAvatarHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r, "limit", 0)
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	offset, err := parseIntParam(r, "offset", 0)
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	ptr, err := h.pointer(r)
	if err != nil {
		renderError(w, h.log, err)
		return
	}

	result, err := h.core.AvatarHistory(r.Context(), ptr, ops.HistoryInput{
		ProfileID: r.URL.Query().Get("profile_id"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleRepairAvatar handles POST /avatar/repair.
func (h *Handlers) HandleRepairAvatar(w http.ResponseWriter, r *http.Request) {
	ptr, err := h.pointer(r)
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	result, err := h.core.RepairAvatar(r.Context(), ptr, ops.RepairInput{
		ProfileID: r.URL.Query().Get("profile_id"),
	})
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleCatalog handles GET /catalog.
func (h *Handlers) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	output, err := h.core.Catalog(r.Context())
	if err != nil {
		renderError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, output)
}

// decodeBody reads a single JSON object into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.NewInvalidRequest("request body is required")
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	if dec.More() {
		return errors.NewInvalidRequest("request body must contain a single JSON object")
	}
	return nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewInvalidRequest(name + " must be an integer")
	}
	return v, nil
}

// wantsHTML reports whether the client prefers HTML over JSON.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
