package tcp

// isnGenerator produces initial sequence numbers from a linear
// congruential counter. The sequence is fully predictable; see the
// caveats in README.md and the rationale in DESIGN.md.
type isnGenerator struct {
	counter uint32
}

// isnSeed is the generator's fixed initial value.
const isnSeed uint32 = 0x12345678

func newISNGenerator() isnGenerator {
	return isnGenerator{counter: isnSeed}
}

// next advances the counter and returns the new value.
func (g *isnGenerator) next() uint32 {
	g.counter = g.counter*1103515245 + 12345
	return g.counter
}
