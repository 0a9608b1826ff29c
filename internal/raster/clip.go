package raster

// rect is an axis-aligned clip rectangle in canvas pixels. Clipping keeps
// coordinates inside the range the fixed-point rasterizer can represent.
type rect struct {
	minX, minY float64
	maxX, maxY float64
}

// clip clips the closed polygon pts to r (Sutherland-Hodgman).
func (r rect) clip(pts []point) []point {
	out := pts
	for edge := 0; edge < 4 && len(out) > 0; edge++ {
		in := out
		out = make([]point, 0, len(in)+4)
		prev := in[len(in)-1]
		for _, cur := range in {
			curIn, prevIn := r.inside(cur, edge), r.inside(prev, edge)
			switch {
			case curIn && prevIn:
				out = append(out, cur)
			case curIn:
				out = append(out, r.intersect(prev, cur, edge), cur)
			case prevIn:
				out = append(out, r.intersect(prev, cur, edge))
			}
			prev = cur
		}
	}
	return out
}

func (r rect) inside(p point, edge int) bool {
	switch edge {
	case 0:
		return p.x >= r.minX
	case 1:
		return p.x <= r.maxX
	case 2:
		return p.y >= r.minY
	default:
		return p.y <= r.maxY
	}
}

func (r rect) intersect(a, b point, edge int) point {
	switch edge {
	case 0:
		return atX(a, b, r.minX)
	case 1:
		return atX(a, b, r.maxX)
	case 2:
		return atY(a, b, r.minY)
	default:
		return atY(a, b, r.maxY)
	}
}

func atX(a, b point, x float64) point {
	t := (x - a.x) / (b.x - a.x)
	return point{x: x, y: a.y + t*(b.y-a.y)}
}

func atY(a, b point, y float64) point {
	t := (y - a.y) / (b.y - a.y)
	return point{x: a.x + t*(b.x-a.x), y: y}
}
