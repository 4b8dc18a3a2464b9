package avatar

import "slices"

// Field names as stored in the avatars table.
const (
	FieldSkinTone  = "skin_tone_id"
	FieldFace      = "face_id"
	FieldHair      = "hair_id"
	FieldHairColor = "hair_color_id"
	FieldOutfit    = "outfit_id"
	FieldAccessory = "accessory_id"
)

// Catalog is an ordered set of valid option ids for one attribute.
// The first entry is the default.
type Catalog struct {
	Field   string   `json:"field"`
	Options []string `json:"options"`
}

// Default returns the first option of the catalog.
func (c Catalog) Default() string {
	return c.Options[0]
}

// Contains reports whether id is one of the catalog's options.
func (c Catalog) Contains(id string) bool {
	return slices.Contains(c.Options, id)
}

// v1 placeholder ids.
var (
	SkinTones  = Catalog{Field: FieldSkinTone, Options: []string{"skin_1", "skin_2", "skin_3", "skin_4", "skin_5"}}
	Faces      = Catalog{Field: FieldFace, Options: []string{"face_1", "face_2", "face_3", "face_4", "face_5"}}
	HairStyles = Catalog{Field: FieldHair, Options: []string{"hair_1", "hair_2", "hair_3", "hair_4", "hair_5"}}
	HairColors = Catalog{Field: FieldHairColor, Options: []string{"black", "brown", "blonde", "red", "gray"}}
	Outfits    = Catalog{Field: FieldOutfit, Options: []string{"outfit_1", "outfit_2", "outfit_3", "outfit_4", "outfit_5"}}

	// Accessories has no "none" entry; an absent accessory means none.
	Accessories = Catalog{Field: FieldAccessory, Options: []string{"accessory_1", "accessory_2", "accessory_3", "accessory_4"}}
)

// Catalogs lists every attribute catalog in display order.
func Catalogs() []Catalog {
	return []Catalog{SkinTones, Faces, HairStyles, HairColors, Outfits, Accessories}
}
