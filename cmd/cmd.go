// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/shelfx/internal/recommend"
	"github.com/desertthunder/shelfx/internal/tasks"
	"github.com/urfave/cli/v3"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

func volumeArgs() []cli.Argument {
	return []cli.Argument{&cli.StringArg{Name: "volume"}}
}

func shelfFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "shelf",
		Aliases:  []string{"s"},
		Usage:    "Shelf id or name (favorites, to-read, reading, read)",
		Required: true,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml if missing, initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
		},
		Action: r.SetupDatabase,
	}
}

// authCommand handles the session lifecycle
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage your Google sign-in",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Sign in with Google in the browser",
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and forget the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the stored session without contacting Google when possible",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:   "restore",
				Usage:  "Restore the stored session, refreshing the token if it expired",
				Action: r.AuthRestore,
			},
		},
	}
}

// shelvesCommand handles bookshelf operations
func shelvesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "shelves",
		Aliases: []string{"shelf"},
		Usage:   "Bookshelf operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List your main bookshelves",
				Flags:  jsonFlags(),
				Action: r.ShelvesList,
			},
			{
				Name:      "volumes",
				Usage:     "List the volumes on a shelf",
				Arguments: []cli.Argument{&cli.StringArg{Name: "shelf"}},
				Flags: append(jsonFlags(), &cli.BoolFlag{
					Name:  "refresh",
					Usage: "Re-read the shelf from Google",
				}),
				Action: r.ShelvesVolumes,
			},
			{
				Name:      "add",
				Usage:     "Add a volume to a shelf",
				Arguments: volumeArgs(),
				Flags:     []cli.Flag{shelfFlag()},
				Action:    r.ShelvesAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a volume from a shelf",
				Arguments: volumeArgs(),
				Flags:     []cli.Flag{shelfFlag()},
				Action:    r.ShelvesRemove,
			},
			{
				Name:      "move",
				Usage:     "Move a volume from one shelf to another",
				Arguments: volumeArgs(),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "from",
						Usage: "Shelf to remove the volume from (none to only add)",
						Value: "none",
					},
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Shelf to add the volume to",
						Required: true,
					},
				},
				Action: r.ShelvesMove,
			},
			{
				Name:      "save",
				Usage:     "Put a volume on exactly the given main shelves",
				Arguments: volumeArgs(),
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "shelf",
						Aliases: []string{"s"},
						Usage:   "Shelf to keep the volume on (repeatable, omit to remove from all)",
					},
				},
				Action: r.ShelvesSave,
			},
			{
				Name:      "reorder",
				Usage:     "Move a volume to a position within its shelf",
				Arguments: volumeArgs(),
				Flags: []cli.Flag{
					shelfFlag(),
					&cli.IntFlag{
						Name:  "position",
						Usage: "New position, 0 is the top of the shelf",
					},
				},
				Action: r.ShelvesReorder,
			},
			{
				Name:      "clear",
				Usage:     "Remove every volume from a shelf",
				Arguments: []cli.Argument{&cli.StringArg{Name: "shelf"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
				},
				Action: r.ShelvesClear,
			},
			{
				Name:      "pick",
				Usage:     "Choose a volume's shelves interactively",
				Arguments: volumeArgs(),
				Action:    r.ShelvesPick,
			},
			{
				Name:      "status",
				Usage:     "Show which shelves hold a volume",
				Arguments: volumeArgs(),
				Flags:     jsonFlags(),
				Action:    r.ShelvesStatus,
			},
		},
	}
}

// favoriteCommand handles the Favorites shelf, with local fallback
func favoriteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "favorite",
		Aliases: []string{"fav"},
		Usage:   "Favorite and unfavorite volumes",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a volume to Favorites",
				Arguments: volumeArgs(),
				Action:    r.FavoriteAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a volume from Favorites",
				Arguments: volumeArgs(),
				Action:    r.FavoriteRemove,
			},
			{
				Name:      "check",
				Usage:     "Report whether a volume is a favorite",
				Arguments: volumeArgs(),
				Action:    r.FavoriteCheck,
			},
		},
	}
}

// booksCommand handles public catalog operations
func booksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "books",
		Usage: "Search and inspect the Google Books catalog",
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search the catalog",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags: append(jsonFlags(),
					&cli.StringFlag{Name: "title", Usage: "Match the title"},
					&cli.StringFlag{Name: "author", Usage: "Match an author"},
					&cli.StringFlag{Name: "subject", Usage: "Match a category"},
					&cli.StringFlag{Name: "order", Usage: "relevance or newest", Value: "relevance"},
					&cli.IntFlag{Name: "start", Usage: "Index of the first result"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of results", Value: 12},
				),
				Action: r.BooksSearch,
			},
			{
				Name:      "show",
				Usage:     "Show a volume's details",
				Arguments: volumeArgs(),
				Flags:     jsonFlags(),
				Action:    r.BooksShow,
			},
			{
				Name:      "read",
				Usage:     "Mark a volume as currently reading and print its reader link",
				Arguments: volumeArgs(),
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "open", Usage: "Open the reader in the browser"},
				},
				Action: r.BooksRead,
			},
			{
				Name:      "public",
				Usage:     "Browse another reader's public shelves",
				Arguments: []cli.Argument{&cli.StringArg{Name: "user"}},
				Flags: append(jsonFlags(), &cli.StringFlag{
					Name:    "shelf",
					Aliases: []string{"s"},
					Usage:   "List the volumes on this shelf instead of the shelves",
				}),
				Action: r.BooksPublic,
			},
		},
	}
}

// recommendCommand suggests books from the user's favorites
func recommendCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "recommend",
		Usage: "Suggest books based on your favorites",
		Flags: append(jsonFlags(), &cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "Recommend by " + string(recommend.ByAuthor) + " or " + string(recommend.ByGenre),
			Value:   string(recommend.ByAuthor),
		}),
		Action: r.Recommend,
	}
}

// exportCommand handles bulk shelf exports
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export your shelves to files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: " + strings.Join(tasks.Formats, ", "),
				Value:   tasks.FormatJSON,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: shelfx_export_<timestamp>)",
			},
			&cli.StringSliceFlag{
				Name:    "shelf",
				Aliases: []string{"s"},
				Usage:   "Shelf to export (repeatable, default: all main shelves)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent writers (max 10)",
				Value: 5,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Shelf reads per second",
				Value: 5,
			},
			&cli.BoolFlag{
				Name:  "no-covers",
				Usage: "Skip cover downloads for markdown",
			},
			&cli.BoolFlag{
				Name:  "dump",
				Usage: "Print every shelf and local record as one JSON document instead",
			},
		},
		Action: r.Export,
		Commands: []*cli.Command{
			{
				Name:  "history",
				Usage: "List previous exports",
				Flags: append(jsonFlags(), &cli.IntFlag{
					Name:  "limit",
					Usage: "Maximum number of exports to list",
					Value: 10,
				}),
				Action: r.ExportHistory,
			},
		},
	}
}

// localCommand handles shelf changes kept locally when Google could not be reached
func localCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "local",
		Usage: "Inspect and sync locally kept favorites and reading records",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List local records",
				Flags:  jsonFlags(),
				Action: r.LocalList,
			},
			{
				Name:   "sync",
				Usage:  "Push local records to Google",
				Action: r.LocalSync,
			},
		},
	}
}
