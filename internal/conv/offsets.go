package conv

// Offsets are the per-group element strides into the packed operands.
// Group g reads data at g*Data, weight at g*Weight and bias at g*Bias, and
// writes output at g*Out.
type Offsets struct {
	Data   int // (C/G) * H * W
	Weight int // (K/G) * (C/G) * KH * KW
	Out    int // (K/G) * OH * OW
	Bias   int // K/G, zero without bias

	groups   int
	channels int // K
}

func computeOffsets(s shapes, groups int, bias bool) Offsets {
	cg := s.c / groups
	kg := s.k / groups
	o := Offsets{
		Data:     cg * s.h * s.w,
		Weight:   kg * cg * s.kh * s.kw,
		Out:      kg * s.oh * s.ow,
		groups:   groups,
		channels: s.k,
	}
	if bias {
		o.Bias = s.bias / groups
	}
	return o
}

// GroupRange returns the half-open range of output channels written by
// group g.
func (o Offsets) GroupRange(g int) (lo, hi int) {
	per := o.channels / o.groups
	return g * per, (g + 1) * per
}
