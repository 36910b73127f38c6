package shapes

type Point struct {
	X, Y int
}

type Circle struct {
	Point
	Radius float64
	Label  string
}

func CircleRadius(c *Circle) float64 { return c.Radius }

func CircleLabel(c Circle) string { return c.Label }

// promoted through Point
func CircleX(c *Circle) int { return c.X }

func PointY(p *Point) int { return p.Y }

func Area(c *Circle) float64 {
	r := c.Radius
	return 3 * r * r
}

func (c *Circle) Diameter() float64 { return 2 * c.Radius }

func Describe(c *Circle) func() float64 { return c.Diameter }
