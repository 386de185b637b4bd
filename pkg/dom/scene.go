package dom

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/virtual-pointer/pkg/core"
)

// Scene is the YAML form of a document.
type Scene struct {
	Touch    bool        `yaml:"touch"`
	Viewport Viewport    `yaml:"viewport"`
	Elements []SceneNode `yaml:"elements"`
}

// Viewport sizes the root element.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SceneNode is one element of a scene file.
type SceneNode struct {
	Type     string      `yaml:"type"`
	ID       string      `yaml:"id"`
	Class    string      `yaml:"class"`
	Text     string      `yaml:"text"`
	Bounds   core.Bounds `yaml:"bounds"`
	Hidden   bool        `yaml:"hidden"`
	Children []SceneNode `yaml:"children"`
}

// DefaultViewport is used when a scene does not declare one.
var DefaultViewport = Viewport{Width: 1024, Height: 768}

// LoadScene reads a YAML scene file.
func LoadScene(path string) (*Document, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided scene file
	if err != nil {
		return nil, fmt.Errorf("failed to read scene: %w", err)
	}
	doc, err := ParseScene(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ParseScene builds a document from YAML. The root is an "html" element
// covering the viewport; scene elements become its children.
func ParseScene(data []byte) (*Document, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("invalid scene").WithCause(err)
	}
	if s.Viewport.Width <= 0 || s.Viewport.Height <= 0 {
		s.Viewport = DefaultViewport
	}

	root := NewElement("html", core.Bounds{Width: s.Viewport.Width, Height: s.Viewport.Height})
	for _, n := range s.Elements {
		child, err := n.build()
		if err != nil {
			return nil, err
		}
		root.Append(child)
	}
	return New(root, WithTouch(s.Touch)), nil
}

func (n SceneNode) build() (*Element, error) {
	if n.Type == "" {
		n.Type = "div"
	}
	if n.Bounds.Width < 0 || n.Bounds.Height < 0 {
		return nil, core.ErrInvalidConfig.WithMessage(
			fmt.Sprintf("element %s has negative size", n.label()))
	}
	e := &Element{
		Type:   n.Type,
		ID:     n.ID,
		Class:  n.Class,
		Text:   n.Text,
		Bounds: n.Bounds,
		Hidden: n.Hidden,
	}
	for _, c := range n.Children {
		child, err := c.build()
		if err != nil {
			return nil, err
		}
		e.Append(child)
	}
	return e, nil
}

func (n SceneNode) label() string {
	if n.ID != "" {
		return "#" + n.ID
	}
	return n.Type
}

// LoadDocument reads a scene file: ".xml" files are page source dumps,
// anything else is a YAML scene.
func LoadDocument(path string) (*Document, error) {
	if !strings.EqualFold(filepath.Ext(path), ".xml") {
		return LoadScene(path)
	}
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided page source
	if err != nil {
		return nil, fmt.Errorf("failed to read page source: %w", err)
	}
	doc, err := ParsePageSource(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
