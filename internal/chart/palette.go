package chart

// Category10 is d3's schemeCategory10
var Category10 = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// ColorScale assigns palette colors to route ids in order of first appearance
type ColorScale struct {
	palette []string
	index   map[string]int
	domain  []string
}

// NewColorScale builds an ordinal color scale. An empty palette falls back to Category10.
func NewColorScale(routeIDs []string, palette []string) *ColorScale {
	if len(palette) == 0 {
		palette = Category10
	}
	c := &ColorScale{
		palette: append([]string(nil), palette...),
		index:   make(map[string]int),
	}
	for _, id := range routeIDs {
		c.add(id)
	}
	return c
}

func (c *ColorScale) add(routeID string) int {
	if i, ok := c.index[routeID]; ok {
		return i
	}
	i := len(c.domain)
	c.index[routeID] = i
	c.domain = append(c.domain, routeID)
	return i
}

// Color returns the color of routeID. Unknown ids extend the domain.
func (c *ColorScale) Color(routeID string) string {
	return c.palette[c.add(routeID)%len(c.palette)]
}

// Legend returns route ids with their colors in domain order
func (c *ColorScale) Legend() map[string]string {
	legend := make(map[string]string, len(c.domain))
	for i, id := range c.domain {
		legend[id] = c.palette[i%len(c.palette)]
	}
	return legend
}
