package entity

// ActorValue indexes an actor statistic (health, strength, ...).
type ActorValue uint8

const (
	ValueHealth ActorValue = iota
	ValueActionPoints
	ValueStrength
	ValuePerception
	ValueEndurance
	ValueCharisma
	ValueIntelligence
	ValueAgility
	ValueLuck
)

// Actor is a container that acts in the world.
type Actor struct {
	Container

	values     map[ActorValue]float32
	baseValues map[ActorValue]float32
	dead       bool
	alerted    bool
	sneaking   bool
}

func (a *Actor) asActor() *Actor { return a }

func (a *Actor) Value(v ActorValue) float32 {
	a.RLock()
	defer a.RUnlock()
	return a.values[v]
}

func (a *Actor) SetValue(v ActorValue, value float32) {
	a.Lock()
	defer a.Unlock()
	if a.values == nil {
		a.values = make(map[ActorValue]float32)
	}
	a.values[v] = value
}

func (a *Actor) BaseValue(v ActorValue) float32 {
	a.RLock()
	defer a.RUnlock()
	return a.baseValues[v]
}

func (a *Actor) SetBaseValue(v ActorValue, value float32) {
	a.Lock()
	defer a.Unlock()
	if a.baseValues == nil {
		a.baseValues = make(map[ActorValue]float32)
	}
	a.baseValues[v] = value
}

func (a *Actor) Dead() bool {
	a.RLock()
	defer a.RUnlock()
	return a.dead
}

func (a *Actor) SetDead(dead bool) {
	a.Lock()
	defer a.Unlock()
	a.dead = dead
}

func (a *Actor) Alerted() bool {
	a.RLock()
	defer a.RUnlock()
	return a.alerted
}

func (a *Actor) SetAlerted(alerted bool) {
	a.Lock()
	defer a.Unlock()
	a.alerted = alerted
}

func (a *Actor) Sneaking() bool {
	a.RLock()
	defer a.RUnlock()
	return a.sneaking
}

func (a *Actor) SetSneaking(sneaking bool) {
	a.Lock()
	defer a.Unlock()
	a.sneaking = sneaking
}

// Player is an actor driven by a connected client.
type Player struct {
	Actor

	controls map[uint8]uint32
	console  bool
}

func (p *Player) asPlayer() *Player { return p }

// Control returns the key bound to a control code, 0 if unbound.
func (p *Player) Control(code uint8) uint32 {
	p.RLock()
	defer p.RUnlock()
	return p.controls[code]
}

func (p *Player) SetControl(code uint8, key uint32) {
	p.Lock()
	defer p.Unlock()
	if p.controls == nil {
		p.controls = make(map[uint8]uint32)
	}
	p.controls[code] = key
}

func (p *Player) ConsoleEnabled() bool {
	p.RLock()
	defer p.RUnlock()
	return p.console
}

func (p *Player) SetConsoleEnabled(enabled bool) {
	p.Lock()
	defer p.Unlock()
	p.console = enabled
}
