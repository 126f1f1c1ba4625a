package vm

// GasMeter tracks the computational allowance of one call chain. The same
// meter is handed down every recursion level, so charges at any depth draw
// from a single budget. Once a charge fails the meter stays empty.
type GasMeter struct {
	limit uint64
	left  uint64
}

// NewGasMeter returns a meter holding limit units of gas.
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit, left: limit}
}

// Charge deducts amount from the remaining gas. If the meter cannot cover
// amount it is drained and ErrOutOfGas is returned.
func (g *GasMeter) Charge(amount uint64) error {
	if g.left < amount {
		g.left = 0
		return ErrOutOfGas
	}
	g.left -= amount
	return nil
}

// GasLeft returns the remaining gas.
func (g *GasMeter) GasLeft() uint64 { return g.left }

// Limit returns the gas the meter started with.
func (g *GasMeter) Limit() uint64 { return g.limit }

// Spent returns the gas consumed so far.
func (g *GasMeter) Spent() uint64 { return g.limit - g.left }
