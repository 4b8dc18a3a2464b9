package avatar

import (
	"strings"

	"github.com/hpungsan/willow/internal/errors"
)

// Attributes is one complete avatar configuration.
type Attributes struct {
	SkinTone  string `json:"skin_tone_id"`
	Face      string `json:"face_id"`
	Hair      string `json:"hair_id"`
	HairColor string `json:"hair_color_id"`
	Outfit    string `json:"outfit_id"`

	// Accessory is nil when the avatar wears no accessory.
	Accessory *string `json:"accessory_id"`
}

// Record is one versioned avatar configuration owned by a profile.
// Only IsActive ever changes after insert.
type Record struct {
	ID         string     `json:"id"`
	ProfileID  string     `json:"profile_id"`
	Attributes Attributes `json:"attributes"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  int64      `json:"created_at"` // unix milliseconds
}

// Default returns the configuration served when a profile has no active
// avatar: the first entry of each catalog and no accessory.
func Default() Attributes {
	return Attributes{
		SkinTone:  SkinTones.Default(),
		Face:      Faces.Default(),
		Hair:      HairStyles.Default(),
		HairColor: HairColors.Default(),
		Outfit:    Outfits.Default(),
	}
}

// NormalizeAccessory maps the legacy "no accessory" sentinels ("", "none")
// to nil and trims everything else.
func NormalizeAccessory(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "none") {
		return nil
	}
	return &v
}

// Normalize trims every field and canonicalizes the accessory.
func (a Attributes) Normalize() Attributes {
	return Attributes{
		SkinTone:  strings.TrimSpace(a.SkinTone),
		Face:      strings.TrimSpace(a.Face),
		Hair:      strings.TrimSpace(a.Hair),
		HairColor: strings.TrimSpace(a.HairColor),
		Outfit:    strings.TrimSpace(a.Outfit),
		Accessory: NormalizeAccessory(a.Accessory),
	}
}

// Validate checks every required field against its catalog and the optional
// accessory, when present, against the accessory catalog.
func (a Attributes) Validate() error {
	required := []struct {
		catalog Catalog
		value   string
	}{
		{SkinTones, a.SkinTone},
		{Faces, a.Face},
		{HairStyles, a.Hair},
		{HairColors, a.HairColor},
		{Outfits, a.Outfit},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.NewInvalidRequest(r.catalog.Field + " is required")
		}
		if !r.catalog.Contains(r.value) {
			return errors.NewInvalidOption(r.catalog.Field, r.value, r.catalog.Options)
		}
	}
	if a.Accessory != nil && !Accessories.Contains(*a.Accessory) {
		return errors.NewInvalidOption(FieldAccessory, *a.Accessory, Accessories.Options)
	}
	return nil
}

// AccessoryOrNone returns the accessory id or "none" for display.
func (a Attributes) AccessoryOrNone() string {
	if a.Accessory == nil {
		return "none"
	}
	return *a.Accessory
}
