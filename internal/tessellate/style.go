package tessellate

import (
	"image/color"

	"github.com/paulmach/orb/geojson"

	"tileserver/internal/shape"
)

// Paint priorities. Lower values are painted first, so everything later in
// this list is drawn over everything before it.
const (
	PriorityBackground  = 10
	PriorityResidential = 20
	PriorityVegetation  = 30
	PriorityWater       = 40
	PriorityBuilding    = 50
	PriorityDefaultLine = 60
	PriorityWaterway    = 65
	PriorityRailway     = 70
	PriorityMinorRoad   = 80
	PriorityMajorRoad   = 85
	PriorityMotorway    = 90
	PriorityBorder      = 95
	PriorityPlace       = 100
)

type style struct {
	kind     shape.Kind
	priority int
	width    float64
	color    color.RGBA
}

var (
	colorBackground  = color.RGBA{R: 0xe0, G: 0xdf, B: 0xdf, A: 0xff}
	colorResidential = color.RGBA{R: 0xd9, G: 0xd0, B: 0xc9, A: 0xff}
	colorForest      = color.RGBA{R: 0xad, G: 0xd1, B: 0x9e, A: 0xff}
	colorGrass       = color.RGBA{R: 0xcd, G: 0xeb, B: 0xb0, A: 0xff}
	colorWater       = color.RGBA{R: 0xaa, G: 0xd3, B: 0xdf, A: 0xff}
	colorBuilding    = color.RGBA{R: 0xc4, G: 0xb6, B: 0xab, A: 0xff}
	colorLine        = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	colorRailway     = color.RGBA{R: 0x70, G: 0x70, B: 0x70, A: 0xff}
	colorMinorRoad   = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	colorMajorRoad   = color.RGBA{R: 0xfc, G: 0xd6, B: 0xa4, A: 0xff}
	colorMotorway    = color.RGBA{R: 0xe8, G: 0x92, B: 0xa2, A: 0xff}
	colorBorder      = color.RGBA{R: 0x8d, G: 0x61, B: 0x8d, A: 0xff}
	colorPlace       = color.RGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff}
)

// classify picks the style of a feature from its OSM-like tags.
func classify(props geojson.Properties, kind shape.Kind) style {
	tag := func(key string) string {
		v, _ := props[key].(string)
		return v
	}

	if kind == shape.KindPoint {
		return style{kind: kind, priority: PriorityPlace, width: 4, color: colorPlace}
	}

	if kind == shape.KindLine {
		switch tag("highway") {
		case "":
		case "motorway", "trunk", "motorway_link", "trunk_link":
			return style{kind: kind, priority: PriorityMotorway, width: 5, color: colorMotorway}
		case "primary", "secondary", "primary_link", "secondary_link":
			return style{kind: kind, priority: PriorityMajorRoad, width: 4, color: colorMajorRoad}
		default:
			return style{kind: kind, priority: PriorityMinorRoad, width: 2, color: colorMinorRoad}
		}
		if tag("railway") != "" {
			return style{kind: kind, priority: PriorityRailway, width: 2, color: colorRailway}
		}
		if tag("waterway") != "" {
			return style{kind: kind, priority: PriorityWaterway, width: 2, color: colorWater}
		}
		if tag("boundary") == "administrative" {
			return style{kind: kind, priority: PriorityBorder, width: 1, color: colorBorder}
		}
		return style{kind: kind, priority: PriorityDefaultLine, width: 1, color: colorLine}
	}

	if tag("building") != "" {
		return style{kind: kind, priority: PriorityBuilding, color: colorBuilding}
	}
	if tag("natural") == "water" || tag("water") != "" || tag("waterway") == "riverbank" {
		return style{kind: kind, priority: PriorityWater, color: colorWater}
	}
	for _, key := range []string{"landuse", "natural", "leisure"} {
		switch tag(key) {
		case "forest", "wood":
			return style{kind: kind, priority: PriorityVegetation, color: colorForest}
		case "grass", "meadow", "park", "grassland", "recreation_ground":
			return style{kind: kind, priority: PriorityVegetation, color: colorGrass}
		case "residential":
			return style{kind: kind, priority: PriorityResidential, color: colorResidential}
		}
	}
	if tag("boundary") == "administrative" {
		return style{kind: shape.KindLine, priority: PriorityBorder, width: 1, color: colorBorder}
	}
	return style{kind: kind, priority: PriorityBackground, color: colorBackground}
}
