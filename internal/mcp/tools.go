package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

const profileIDDesc = "Profile id. Defaults to the session's selected profile."

var profileListToolDef = mcp.NewTool("profile_list",
	mcp.WithDescription("List the user's profiles, oldest first."),
)

var profileCreateToolDef = mcp.NewTool("profile_create",
	mcp.WithDescription("Create a profile. display_name must not be blank."),
	mcp.WithString("display_name", mcp.Required(), mcp.Description("Name shown for the profile")),
	mcp.WithString("age_mode", mcp.Description("Age band: 4–6 (default), 7–9, or 10–12"), mcp.Enum("4–6", "7–9", "10–12")),
	mcp.WithBoolean("select", mcp.Description("Make the new profile the session's current profile")),
)

var profileDeleteToolDef = mcp.NewTool("profile_delete",
	mcp.WithDescription("Delete a profile. Clears the session selection if it pointed at this profile. Avatar history is kept but becomes unreachable."),
	mcp.WithString("profile_id", mcp.Required(), mcp.Description("Profile id")),
)

var profileSelectToolDef = mcp.NewTool("profile_select",
	mcp.WithDescription("Select the profile later avatar calls act on."),
	mcp.WithString("profile_id", mcp.Required(), mcp.Description("Profile id")),
)

var profileCurrentToolDef = mcp.NewTool("profile_current",
	mcp.WithDescription("Show the session's selected profile. selected=false means a profile must be selected first."),
)

var avatarGetToolDef = mcp.NewTool("avatar_get",
	mcp.WithDescription("Get the profile's active avatar. Returns the default avatar (is_default=true) when none is saved."),
	mcp.WithString("profile_id", mcp.Description(profileIDDesc)),
)

var avatarSaveToolDef = mcp.NewTool("avatar_save",
	mcp.WithDescription("Save a new avatar and make it active. On PARTIALLY_COMMITTED, call again with resume=true and the same attributes."),
	mcp.WithString("profile_id", mcp.Description(profileIDDesc)),
	mcp.WithString("skin_tone_id", mcp.Required(), mcp.Description("Skin tone option id")),
	mcp.WithString("face_id", mcp.Required(), mcp.Description("Face option id")),
	mcp.WithString("hair_id", mcp.Required(), mcp.Description("Hair style option id")),
	mcp.WithString("hair_color_id", mcp.Required(), mcp.Description("Hair color option id")),
	mcp.WithString("outfit_id", mcp.Required(), mcp.Description("Outfit option id")),
	mcp.WithString("accessory_id", mcp.Description("Accessory option id; omit or \"none\" for no accessory")),
	mcp.WithBoolean("resume", mcp.Description("Retry only the insert step of a partially committed save")),
)

var avatarHistoryToolDef = mcp.NewTool("avatar_history",
	mcp.WithDescription("List the profile's saved avatars, newest first."),
	mcp.WithString("profile_id", mcp.Description(profileIDDesc)),
	mcp.WithNumber("limit", mcp.Description("Max records (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Records to skip")),
)

var avatarRepairToolDef = mcp.NewTool("avatar_repair",
	mcp.WithDescription("Restore exactly one active avatar: keeps the newest when several are active, reactivates the newest when none is."),
	mcp.WithString("profile_id", mcp.Description(profileIDDesc)),
)

var avatarCatalogToolDef = mcp.NewTool("avatar_catalog",
	mcp.WithDescription("List valid avatar option ids, the default avatar, and age bands."),
)
