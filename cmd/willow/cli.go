package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/willow/internal/avatar"
	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/identity"
	"github.com/hpungsan/willow/internal/mcp"
	"github.com/hpungsan/willow/internal/ops"
	"github.com/hpungsan/willow/internal/session"
	"github.com/hpungsan/willow/internal/web"
)

// newCLIApp creates the CLI application with all commands.
// d may be nil when only help or version output is needed.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "willow",
		Usage:   "Player profiles and avatars",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Act as this user (default from config)"},
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session id (default from config)"},
		},
		Commands: []*cli.Command{
			profileCmd(d),
			avatarCmd(d),
			serveCmd(d),
			mcpCmd(d),
			tokenCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// user returns the acting user: the --user flag, else the configured user.
func (d *deps) user(c *cli.Context) string {
	if u := c.String("user"); u != "" {
		return u
	}
	return d.cfg.User
}

// scope attaches the caller's identity and opens the session pointer.
// Global flags override the configured user and session id.
func (d *deps) scope(c *cli.Context) (context.Context, *session.Pointer, error) {
	user := d.user(c)
	sid := d.cfg.SessionID
	if s := c.String("session"); s != "" {
		sid = s
	}
	ptr, err := session.Open(d.sessions, sid)
	if err != nil {
		return nil, nil, errors.NewInvalidRequest(err.Error())
	}
	return identity.WithUser(c.Context, user), ptr, nil
}

// profileCmd creates the profile command group.
func profileCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage player profiles",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List profiles, oldest first",
				Action: func(c *cli.Context) error {
					ctx, _, err := d.scope(c)
					if err != nil {
						return outputError(err)
					}
					output, err := d.core.ListProfiles(ctx)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "create",
				Usage: "Create a profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "age", Aliases: []string{"a"}, Usage: "Age band: 4-6, 7-9, or 10-12 (default 4-6)"},
					&cli.BoolFlag{Name: "select", Usage: "Select the new profile for this session"},
				},
				Action: func(c *cli.Context) error {
					ctx, ptr, err := d.scope(c)
					if err != nil {
						return outputError(err)
					}
					output, err := d.core.CreateProfile(ctx, ptr, ops.CreateProfileInput{
						DisplayName: c.String("name"),
						AgeBand:     c.String("age"),
						Select:      c.Bool("select"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a profile",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("profile id is required"))
					}
					ctx, ptr, err := d.scope(c)
					if err != nil {
						return outputError(err)
					}
					output, err := d.core.DeleteProfile(ctx, ptr, ops.DeleteProfileInput{ProfileID: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "select",
				Usage:     "Select the profile later avatar commands act on",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("profile id is required"))
					}
					ctx, ptr, err := d.scope(c)
					if err != nil {
						return outputError(err)
					}
					output, err := d.core.SelectProfile(ctx, ptr, ops.SelectProfileInput{ProfileID: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "current",
				Usage: "Show the selected profile",
				Action: func(c *cli.Context) error {
					ctx, ptr, err := d.scope(c)
					if err != nil {
						return outputError(err)
					}
					output, err := d.core.CurrentProfile(ctx, ptr)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

func profileFlag() cli.Flag {
	return &cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Usage: "Profile id (default: the selected profile)"}
}

// avatarCmd creates the avatar command group.
func avatarCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "avatar",
		Usage: "Show and save avatars",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the active avatar",
				Flags: []cli.Flag{
					profileFlag(),
					&cli.BoolFlag{Name: "card", Usage: "Print a markdown card instead of JSON"},
				},
				Action: func(c *cli.Context) error {
					ctx, ptr, err := d.scope(c)
					if err != nil {
						return outputError(err)
					}
					output, err := d.core.GetActiveAvatar(ctx, ptr, ops.GetAvatarInput{ProfileID: c.String("profile")})
					if err != nil {
						return outputError(err)
					}
					if c.Bool("card") {
						_, err := fmt.Fprint(os.Stdout, avatar.Card("Avatar", output.Attributes, output.IsDefault))
						return err
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "save",
				Usage: "Save a new avatar and make it active",
				Flags: []cli.Flag{
					profileFlag(),
					&cli.StringFlag{Name: "skin", Usage: "Skin tone id", Required: true},
					&cli.StringFlag{Name: "face", Usage: "Face id", Required: true},
					&cli.StringFlag{Name: "hair", Usage: "Hair style id", Required: true},
					&cli.StringFlag{Name: "hair-color", Usage: "Hair color id", Required: true},
					&cli.StringFlag{Name: "outfit", Usage: "Outfit id", Required: true},
					&cli.StringFlag{Name: "accessory", Usage: "Accessory id (omit or \"none\" for no accessory)"},
					&cli.BoolFlag{Name: "resume", Usage: "Retry only the insert of a partially committed save"},
				},
				Action: func(c *cli.Context) error {
					attrs := avatar.Attributes{
						SkinTone:  c.String("skin"),
						Face:      c.String("face"),
						Hair:      c.String("hair"),
						HairColor: c.String("hair-color"),
						Outfit:    c.String("outfit"),
					}
					if c.IsSet("accessory") {
						acc := c.String("accessory")
						attrs.Accessory = &acc
					}
					ctx, ptr, err := d.scope(c)
					if err != nil {
						return outputError(err)
					}
					output, err := d.core.SaveAvatar(ctx, ptr, ops.SaveAvatarInput{
						ProfileID:  c.String("profile"),
						Attributes: attrs,
						Resume:     c.Bool("resume"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "history",
				Usage: "List saved avatars, newest first",
				Flags: []cli.Flag{
					profileFlag(),
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Max records"},
					&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Records to skip"},
				},
				Action: func(c *cli.Context) error {
					ctx, ptr, err := d.scope(c)
					if err != nil {
						return outputError(err)
					}
					output, err := d.core.AvatarHistory(ctx, ptr, ops.HistoryInput{
						ProfileID: c.String("profile"),
						Limit:     c.Int("limit"),
						Offset:    c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "repair",
				Usage: "Restore exactly one active avatar",
				Flags: []cli.Flag{profileFlag()},
				Action: func(c *cli.Context) error {
					ctx, ptr, err := d.scope(c)
					if err != nil {
						return outputError(err)
					}
					output, err := d.core.RepairAvatar(ctx, ptr, ops.RepairInput{ProfileID: c.String("profile")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "catalog",
				Usage: "List valid option ids and age bands",
				Action: func(c *cli.Context) error {
					ctx, _, err := d.scope(c)
					if err != nil {
						return outputError(err)
					}
					output, err := d.core.Catalog(ctx)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *d.cfg
			if c.IsSet("bind") {
				cfg.HTTPBind = c.String("bind")
			}
			if c.IsSet("port") {
				cfg.HTTPPort = c.Int("port")
			}
			srv := web.NewServer(d.core, d.sessions, web.Authenticator(&cfg), &cfg, d.log.Named("http"))
			if err := web.Run(srv, d.log); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			warnUnknownTools(d)
			return mcp.Run(d.core, d.sessions, d.cfg, Version)
		},
	}
}

// tokenOutput is the result of the token command.
type tokenOutput struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// tokenCmd creates the token command, which issues bearer tokens for the
// HTTP API signed with the configured jwt_secret.
func tokenCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a bearer token for the HTTP API",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "Token lifetime"},
		},
		Action: func(c *cli.Context) error {
			if d.cfg.JWTSecret == "" {
				return outputError(errors.NewInvalidRequest("jwt_secret is not configured"))
			}
			userID, err := identity.Require(identity.WithUser(c.Context, d.user(c)))
			if err != nil {
				return outputError(err)
			}
			ttl := c.Duration("ttl")
			if ttl <= 0 {
				return outputError(errors.NewInvalidRequest("ttl must be positive"))
			}
			expires := time.Now().Add(ttl)
			token, err := identity.NewJWT([]byte(d.cfg.JWTSecret), d.cfg.JWTIssuer).Sign(userID, ttl)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(tokenOutput{Token: token, UserID: userID, ExpiresAt: expires.Unix()})
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI as "[CODE] message".
func outputError(err error) error {
	wErr := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", wErr.Code, wErr.Message), 1)
}
