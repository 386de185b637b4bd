package dom

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devicelab-dev/virtual-pointer/pkg/core"
)

// ParsePageSource builds a document from a UIAutomator hierarchy dump.
// Supports both formats:
// - UIAutomator dump: uses class name as element tag (e.g., <android.widget.FrameLayout>)
// - Appium format: uses <node> elements with a class attribute
//
// Page sources describe touch screens, so the document is touch capable.
func ParsePageSource(xmlData string) (*Document, error) {
	decoder := xml.NewDecoder(strings.NewReader(xmlData))

	foundHierarchy := false
	var roots []*Element
	var parseElement func(start xml.StartElement) (*Element, error)

	parseElement = func(start xml.StartElement) (*Element, error) {
		elem := &Element{Type: start.Name.Local}
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "text":
				elem.Text = attr.Value
			case "resource-id":
				elem.ID = attr.Value
			case "class":
				elem.Type = attr.Value
			case "content-desc":
				if attr.Value != "" {
					elem.Class = strings.Join(strings.Fields(attr.Value), "-")
				}
			case "bounds":
				elem.Bounds = parseBounds(attr.Value)
			case "displayed":
				elem.Hidden = attr.Value == "false"
			}
		}

		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}
			switch t := token.(type) {
			case xml.StartElement:
				child, err := parseElement(t)
				if err != nil {
					return nil, err
				}
				elem.Append(child)
			case xml.EndElement:
				return elem, nil
			}
		}
	}

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid page source: %w", err)
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == "hierarchy" {
			foundHierarchy = true
			continue
		}
		elem, err := parseElement(start)
		if err != nil {
			return nil, fmt.Errorf("invalid page source: %w", err)
		}
		roots = append(roots, elem)
	}

	if !foundHierarchy {
		return nil, fmt.Errorf("invalid page source: no hierarchy element found")
	}

	root := &Element{Type: "hierarchy", Bounds: unionBounds(roots)}
	root.Append(roots...)
	return New(root, WithTouch(true)), nil
}

// parseBounds parses Android bounds string "[x1,y1][x2,y2]" to Bounds.
func parseBounds(s string) core.Bounds {
	// Format: [x1,y1][x2,y2]
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Bounds{}
	}

	x1, _ := strconv.Atoi(parts[0])
	y1, _ := strconv.Atoi(parts[1])
	x2, _ := strconv.Atoi(parts[2])
	y2, _ := strconv.Atoi(parts[3])

	return core.Bounds{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}

func unionBounds(elems []*Element) core.Bounds {
	if len(elems) == 0 {
		return core.Bounds{}
	}
	x1, y1 := elems[0].Bounds.X, elems[0].Bounds.Y
	x2, y2 := x1+elems[0].Bounds.Width, y1+elems[0].Bounds.Height
	for _, e := range elems[1:] {
		b := e.Bounds
		x1 = min(x1, b.X)
		y1 = min(y1, b.Y)
		x2 = max(x2, b.X+b.Width)
		y2 = max(y2, b.Y+b.Height)
	}
	return core.Bounds{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
