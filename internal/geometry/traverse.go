package geometry

// TraverseLine returns the point reached after step integer steps of a
// standard Bresenham rasterization from start toward end. Step 0 returns
// start; the line is guaranteed to reach end in exactly Steps(start, end)
// steps, fixing the shallow-slope drift the original implementation's
// traverse_line could exhibit (spec.md §9 Open Questions).
func TraverseLine(start, end Point, step int) Point {
	dx := absInt32(end.X - start.X)
	dy := -absInt32(end.Y - start.Y)
	sx := int32(1)
	if start.X > end.X {
		sx = -1
	}
	sy := int32(1)
	if start.Y > end.Y {
		sy = -1
	}
	err := dx + dy

	x, y := start.X, start.Y
	for i := 0; i < step; i++ {
		if x == end.X && y == end.Y {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
	return Point{X: x, Y: y}
}

// Steps returns the number of traversal steps (inclusive of the final
// point) a Bresenham walk from start to end takes.
func Steps(start, end Point) int {
	dx := absInt32(end.X - start.X)
	dy := absInt32(end.Y - start.Y)
	if dx > dy {
		return int(dx) + 1
	}
	return int(dy) + 1
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
