package policy

// Route is the ordered (source node, destination node) pair keying the
// delay table.
type Route struct {
	Src uint8
	Dst uint8
}

// ItmDelay maps a route to the number of K-frames an uplink packet is
// deferred before joining its batch. A scalar default covers every route
// without an explicit override. Not safe for concurrent use.
type ItmDelay struct {
	def       uint32
	overrides map[Route]uint32
}

// NewItmDelay creates a table with the given default delay.
func NewItmDelay(def uint32) *ItmDelay {
	return &ItmDelay{def: def, overrides: make(map[Route]uint32)}
}

// SetDefault applies frames to all routes without an explicit override.
func (d *ItmDelay) SetDefault(frames uint32) { d.def = frames }

// SetRoute installs an explicit per-route override.
func (d *ItmDelay) SetRoute(src, dst uint8, frames uint32) {
	d.overrides[Route{Src: src, Dst: dst}] = frames
}

// Reset drops every override and restores the given default.
func (d *ItmDelay) Reset(def uint32) {
	d.def = def
	d.overrides = make(map[Route]uint32)
}

// Lookup returns the override for (src,dst) if present, else the default.
func (d *ItmDelay) Lookup(src, dst uint8) uint32 {
	if frames, ok := d.overrides[Route{Src: src, Dst: dst}]; ok {
		return frames
	}
	return d.def
}

// Overrides returns a copy of the override table for display surfaces.
func (d *ItmDelay) Overrides() map[Route]uint32 {
	out := make(map[Route]uint32, len(d.overrides))
	for r, f := range d.overrides {
		out[r] = f
	}
	return out
}

// Default returns the scalar default delay.
func (d *ItmDelay) Default() uint32 { return d.def }
