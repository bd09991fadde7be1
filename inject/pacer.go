package inject

import "time"

// Pacing configures the delay that follows every injected character.
type Pacing struct {
	Initial    time.Duration `help:"Delay after each injected character at session start" default:"8ms" env:"GHOSTKEY_PACING_INITIAL"`
	Floor      time.Duration `help:"Lowest delay the pacer adapts down to" default:"3ms" env:"GHOSTKEY_PACING_FLOOR"`
	Ceiling    time.Duration `help:"Highest delay the pacer adapts up to" default:"15ms" env:"GHOSTKEY_PACING_CEILING"`
	Reset      time.Duration `help:"Delay used when the current delay exceeds the ceiling" default:"10ms" env:"GHOSTKEY_PACING_RESET"`
	RaiseStep  time.Duration `help:"Delay increase per dropped event" default:"2ms" env:"GHOSTKEY_PACING_RAISE_STEP"`
	LowerStep  time.Duration `help:"Delay decrease after a clean streak" default:"500us" env:"GHOSTKEY_PACING_LOWER_STEP"`
	LowerAfter int           `help:"Clean characters required before lowering the delay" default:"8" env:"GHOSTKEY_PACING_LOWER_AFTER"`
}

// DefaultPacing returns the reference pacing.
func DefaultPacing() Pacing {
	return Pacing{
		Initial:    8 * time.Millisecond,
		Floor:      3 * time.Millisecond,
		Ceiling:    15 * time.Millisecond,
		Reset:      10 * time.Millisecond,
		RaiseStep:  2 * time.Millisecond,
		LowerStep:  500 * time.Microsecond,
		LowerAfter: 8,
	}
}

func (c Pacing) normalized() Pacing {
	d := DefaultPacing()
	if c.Initial <= 0 {
		c.Initial = d.Initial
	}
	if c.Floor <= 0 {
		c.Floor = d.Floor
	}
	if c.Ceiling <= 0 {
		c.Ceiling = d.Ceiling
	}
	if c.Ceiling < c.Floor {
		c.Ceiling = c.Floor
	}
	if c.Reset <= 0 {
		c.Reset = d.Reset
	}
	c.Reset = min(max(c.Reset, c.Floor), c.Ceiling)
	if c.RaiseStep <= 0 {
		c.RaiseStep = d.RaiseStep
	}
	if c.LowerStep <= 0 {
		c.LowerStep = d.LowerStep
	}
	if c.LowerAfter <= 0 {
		c.LowerAfter = d.LowerAfter
	}
	return c
}

// Pacer adapts the inter-character delay to how reliably the OS delivers
// posted events. It is owned by the run loop and not safe for concurrent use.
type Pacer struct {
	cfg              Pacing
	delay            time.Duration
	consecutiveDrops int
	drops            int
	clean            int
}

// NewPacer returns a pacer starting at cfg.Initial. Zero fields take their defaults.
func NewPacer(cfg Pacing) *Pacer {
	cfg = cfg.normalized()
	p := &Pacer{cfg: cfg, delay: cfg.Initial}
	if p.delay < cfg.Floor {
		p.delay = cfg.Floor
	}
	return p
}

// Delay returns the current delay. A delay above the ceiling falls back to the reset value.
func (p *Pacer) Delay() time.Duration {
	if p.delay > p.cfg.Ceiling {
		p.delay = p.cfg.Reset
	}
	return p.delay
}

// Observe records the outcome of one character.
func (p *Pacer) Observe(dropped bool) {
	if dropped {
		p.consecutiveDrops++
		p.drops++
		p.clean = 0
		p.delay = min(p.Delay()+p.cfg.RaiseStep, p.cfg.Ceiling)
		return
	}
	p.consecutiveDrops = 0
	p.clean++
	if p.clean < p.cfg.LowerAfter {
		return
	}
	p.clean = 0
	p.delay = max(p.Delay()-p.cfg.LowerStep, p.cfg.Floor)
}

// ConsecutiveDrops returns the length of the current run of dropped characters.
func (p *Pacer) ConsecutiveDrops() int { return p.consecutiveDrops }

// Drops returns the number of dropped characters observed in total.
func (p *Pacer) Drops() int { return p.drops }
