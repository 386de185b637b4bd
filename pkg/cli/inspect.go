package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
	"github.com/devicelab-dev/virtual-pointer/pkg/pointer"
	"github.com/urfave/cli/v2"
)

var hitCommand = &cli.Command{
	Name:      "hit",
	Usage:     "Print the topmost element at a coordinate",
	ArgsUsage: "<scene> <x> <y>",
	Description: `Hit-test a scene the way gestures do and print the element a pointer
at (x, y) would target.

Examples:
  virtual-pointer hit board.scene.yaml 120 140
  virtual-pointer hit window_dump.xml 540 1200 --json`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output as JSON",
		},
	},
	Action: runHit,
}

var profileCommand = &cli.Command{
	Name:  "profile",
	Usage: "Print the event names gestures dispatch",
	Description: `Print the start, move and stop event names for a host. Without flags
the mouse profile is shown.

Examples:
  virtual-pointer profile
  virtual-pointer profile --touch
  virtual-pointer profile --scene board.scene.yaml`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "touch",
			Usage: "Show the touch profile",
		},
		&cli.StringFlag{
			Name:  "scene",
			Usage: "Probe this scene for touch support",
		},
	},
	Action: runProfile,
}

// hitResult is the JSON form of a hit test.
type hitResult struct {
	X      int         `json:"x"`
	Y      int         `json:"y"`
	Path   string      `json:"path"`
	ID     string      `json:"id,omitempty"`
	Text   string      `json:"text,omitempty"`
	Bounds core.Bounds `json:"bounds"`
	Offset core.Point  `json:"offset"`
}

func runHit(c *cli.Context) error {
	if c.NArg() != 3 {
		return fmt.Errorf("usage: hit <scene> <x> <y>")
	}
	x, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid x %q: %w", c.Args().Get(1), err)
	}
	y, err := strconv.Atoi(c.Args().Get(2))
	if err != nil {
		return fmt.Errorf("invalid y %q: %w", c.Args().Get(2), err)
	}

	doc, err := dom.LoadDocument(resolveScene(c.Args().Get(0)))
	if err != nil {
		return err
	}
	res, err := hitTest(doc, x, y)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printHit(c.App.Writer, res)
	return nil
}

func hitTest(doc *dom.Document, x, y int) (*hitResult, error) {
	el := doc.ElementFromPoint(x, y)
	if el == nil {
		return nil, core.ErrNoTargetAtCoordinate.WithDetails(map[string]interface{}{"x": x, "y": y})
	}
	offset, err := doc.Offset(el)
	if err != nil {
		return nil, err
	}
	return &hitResult{
		X:      x,
		Y:      y,
		Path:   el.Path(),
		ID:     el.ID,
		Text:   el.Text,
		Bounds: el.Bounds,
		Offset: offset,
	}, nil
}

func printHit(w io.Writer, res *hitResult) {
	fmt.Fprintf(w, "%s %s\n", paint(infoStyle, fmt.Sprintf("(%d, %d)", res.X, res.Y)), paint(titleStyle, res.Path))
	b := res.Bounds
	fmt.Fprintf(w, "  bounds: x=%d y=%d w=%d h=%d\n", b.X, b.Y, b.Width, b.Height)
	fmt.Fprintf(w, "  offset: %d,%d\n", res.Offset.X, res.Offset.Y)
	if res.Text != "" {
		fmt.Fprintf(w, "  text:   %q\n", res.Text)
	}
}

func runProfile(c *cli.Context) error {
	profile := pointer.MouseProfile
	if scene := c.String("scene"); scene != "" {
		doc, err := dom.LoadDocument(resolveScene(scene))
		if err != nil {
			return err
		}
		profile = pointer.DetectProfile(doc)
	}
	if c.IsSet("touch") {
		profile = pointer.ProfileFor(c.Bool("touch"))
	}

	w := c.App.Writer
	for _, alias := range pointer.EventAliases {
		fmt.Fprintf(w, "%-6s %s\n", alias+":", paint(infoStyle, profile.Resolve(alias)))
	}
	return nil
}
