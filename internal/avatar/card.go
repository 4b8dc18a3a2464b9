package avatar

import (
	"fmt"
	"strings"
)

// Card renders an avatar configuration as a short markdown document.
// title is used as the heading; isDefault marks a configuration that was
// never saved.
func Card(title string, a Attributes, isDefault bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	if isDefault {
		b.WriteString("_Default avatar (nothing saved yet)_\n\n")
	}
	b.WriteString("| Attribute | Value |\n|---|---|\n")
	rows := [][2]string{
		{"Skin tone", a.SkinTone},
		{"Face", a.Face},
		{"Hair", a.Hair},
		{"Hair color", a.HairColor},
		{"Outfit", a.Outfit},
		{"Accessory", a.AccessoryOrNone()},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | `%s` |\n", r[0], r[1])
	}
	return b.String()
}
