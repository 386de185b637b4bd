package cli

import (
	"fmt"

	"github.com/devicelab-dev/virtual-pointer/pkg/validator"
	"github.com/urfave/cli/v2"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check flows against their scenes without running them",
	ArgsUsage: "<flow-file-or-folder>...",
	Description: `Parse flows, load their scenes and check that selectors resolve,
durations are not negative and move steps name exactly one destination.
All problems are reported, not just the first.

Examples:
  virtual-pointer validate flows/
  virtual-pointer validate flow.yaml --scene board.scene.yaml`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "scene",
			Usage: "Scene for flows that do not name one",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},
	},
	Action: runValidate,
}

func runValidate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one flow file or folder is required")
	}
	wcfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	scene, include, exclude := wcfg.Scene, wcfg.IncludeTags, wcfg.ExcludeTags
	if c.IsSet("scene") {
		scene = c.String("scene")
	}
	if c.IsSet("include-tags") {
		include = c.StringSlice("include-tags")
	}
	if c.IsSet("exclude-tags") {
		exclude = c.StringSlice("exclude-tags")
	}

	w := c.App.Writer
	files, errs := validatePaths(c.Args().Slice(), validator.New(include, exclude, validator.WithScene(resolveScene(scene))))
	if len(errs) > 0 {
		printValidationErrors(w, errs)
		return fmt.Errorf("validation failed with %d error(s)", len(errs))
	}
	for _, f := range files {
		fmt.Fprintf(w, "  %s %s\n", paint(successStyle, "✓"), f)
	}
	fmt.Fprintf(w, "%d flow(s) valid\n", len(files))
	return nil
}
