package assessment

// Token identifies one armed instance of a [Gate].
type Token uint64

// Gate is a single-shot transition guard. Every item the controller presents
// arms the gate; whichever trigger resolves the item first (a match, a
// mismatch, a timeout, a skip) fires it, and every later trigger carrying
// the same token is ignored. Re-arming invalidates all earlier tokens, so a
// stale timer can never resolve the next item.
//
// The zero value is disarmed and ready to use.
type Gate struct {
	gen   Token
	armed bool
}

// Arm starts a new instance and returns its token.
func (g *Gate) Arm() Token {
	g.gen++
	g.armed = true
	return g.gen
}

// Live reports whether tok belongs to the current, not yet fired, instance.
func (g *Gate) Live(tok Token) bool {
	return g.armed && tok == g.gen
}

// Fire consumes the current instance. It returns true at most once per Arm.
func (g *Gate) Fire(tok Token) bool {
	if !g.Live(tok) {
		return false
	}
	g.armed = false
	return true
}

// Disarm invalidates the current instance without firing it.
func (g *Gate) Disarm() {
	g.armed = false
}

// Current returns the most recently armed token.
func (g *Gate) Current() Token {
	return g.gen
}
