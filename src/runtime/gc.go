package runtime

import (
	"github.com/tliron/commonlog"

	"github.com/airtrack/luna-sub000/src/conf"
)

var gcLog = commonlog.GetLogger("luna.gc")

type (
	// gcHeader is embedded in every collectable object.
	gcHeader struct {
		epoch uint32
		gen   uint8
	}
	collectable interface {
		header() *gcHeader
		trace(*marker)
	}
	marker struct {
		epoch uint32
		gray  []collectable
	}
	// Heap owns every collectable object allocated by a state and sorts them
	// into generations. An object that survives a sweep of its generation is
	// promoted to the next one.
	Heap struct {
		gens       [conf.GCGENERATIONS][]collectable
		epoch      uint32
		cfg        conf.GCConfig
		pool       *StringPool
		fullLimit  int
		Collection [conf.GCGENERATIONS]int
	}
)

func (h *gcHeader) header() *gcHeader { return h }

func newHeap(cfg conf.GCConfig) *Heap {
	return &Heap{cfg: cfg, fullLimit: 4 * cfg.Gen1Threshold}
}

func (h *Heap) track(obj collectable) {
	hdr := obj.header()
	hdr.gen = 0
	hdr.epoch = h.epoch
	h.gens[0] = append(h.gens[0], obj)
}

// Size is the number of objects currently tracked in a generation.
func (h *Heap) Size(gen int) int { return len(h.gens[gen]) }

// Total is the number of tracked objects across all generations.
func (h *Heap) Total() int {
	total := 0
	for _, gen := range h.gens {
		total += len(gen)
	}
	return total
}

// pending reports the oldest generation due for collection, or -1.
func (h *Heap) pending() int {
	if h.cfg.Disabled {
		return -1
	}
	upto := -1
	if len(h.gens[0]) >= h.cfg.Gen0Threshold {
		upto = 0
		if len(h.gens[1]) >= h.cfg.Gen1Threshold {
			upto = 1
			if len(h.gens[2]) >= h.fullLimit {
				upto = 2
			}
		}
	}
	return upto
}

// collect marks everything reachable from roots and sweeps generations 0
// through upto.
func (h *Heap) collect(upto int, roots func(*marker)) {
	h.epoch++
	m := &marker{epoch: h.epoch}
	roots(m)
	for len(m.gray) > 0 {
		obj := m.gray[len(m.gray)-1]
		m.gray = m.gray[:len(m.gray)-1]
		obj.trace(m)
	}

	freed := 0
	var promoted []collectable
	for gen := 0; gen <= upto; gen++ {
		survivors := promoted
		promoted = nil
		for _, obj := range h.gens[gen] {
			if obj.header().epoch != h.epoch {
				h.release(obj)
				freed++
				continue
			}
			if gen+1 < len(h.gens) {
				obj.header().gen = uint8(gen + 1)
				promoted = append(promoted, obj)
			} else {
				survivors = append(survivors, obj)
			}
		}
		h.gens[gen] = survivors
	}
	if upto+1 < len(h.gens) {
		h.gens[upto+1] = append(h.gens[upto+1], promoted...)
	} else {
		h.gens[upto] = append(h.gens[upto], promoted...)
	}
	if upto == len(h.gens)-1 {
		h.fullLimit = max(4*h.cfg.Gen1Threshold, 2*len(h.gens[upto]))
	}
	h.Collection[upto]++
	gcLog.Debugf("collected generations 0-%d: freed %d, live %d/%d/%d",
		upto, freed, len(h.gens[0]), len(h.gens[1]), len(h.gens[2]))
}

func (h *Heap) release(obj collectable) {
	switch tobj := obj.(type) {
	case *String:
		if h.pool != nil {
			h.pool.release(tobj)
		}
	case *UserData:
		tobj.destroy()
	}
}

func (m *marker) mark(val any) {
	obj, ok := val.(collectable)
	if !ok || obj == nil {
		return
	}
	hdr := obj.header()
	if hdr.epoch == m.epoch {
		return
	}
	hdr.epoch = m.epoch
	m.gray = append(m.gray, obj)
}
