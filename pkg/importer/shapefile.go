package importer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonas-p/go-shp"

	"rallynav/pkg/model"
)

// ShapefileType is the waypoint type given to shapefile points.
const ShapefileType = "Landmark"

// ParseShapefile reads point features from an ESRI shapefile. nameField selects
// the attribute holding the waypoint name; an optional DESC attribute becomes
// the description. Non-point shapes and unnamed points are skipped.
func ParseShapefile(path, nameField string) ([]model.Waypoint, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	nameIdx, descIdx := -1, -1
	for i, f := range shape.Fields() {
		switch strings.ToUpper(dbfText(f.String())) {
		case strings.ToUpper(nameField):
			nameIdx = i
		case "DESC", "DESCRIPTION":
			descIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("shapefile has no %q attribute", nameField)
	}

	var out []model.Waypoint
	skipped := 0
	for shape.Next() {
		n, p := shape.Shape()

		pt, ok := p.(*shp.Point)
		if !ok {
			skipped++
			continue
		}
		name := strings.ToUpper(dbfText(shape.ReadAttribute(n, nameIdx)))
		if name == "" {
			skipped++
			continue
		}
		w := model.Waypoint{
			Name:   name,
			Type:   ShapefileType,
			Lat:    pt.Y,
			Lon:    pt.X,
			Source: "faa",
		}
		if descIdx >= 0 {
			w.Description = dbfText(shape.ReadAttribute(n, descIdx))
		}
		out = append(out, w)
	}
	if err := shape.Err(); err != nil {
		return out, fmt.Errorf("error iterating shapes: %w", err)
	}
	if skipped > 0 {
		slog.Debug("Shapefile records skipped", "path", path, "count", skipped)
	}
	return out, nil
}

// dbfText strips the space or NUL padding of a DBF name or value.
func dbfText(s string) string {
	return strings.Trim(s, " \x00")
}
