package profile

// FrameTable is a bijection between frame names and integer ids, assigned in
// the order names are first encountered while scanning a profile's samples.
// Id 0 is always the first frame of the first sample. The table is rebuilt
// for every export, so ids are deterministic for a given profile but never
// shared across two independent exports.
type FrameTable struct {
	names []string
	ids   map[string]int
}

// BuildFrameTable scans samples in order and assigns each distinct frame
// name the next sequential id.
func BuildFrameTable(samples []Sample) *FrameTable {
	t := &FrameTable{ids: make(map[string]int)}
	for _, s := range samples {
		for _, name := range s.Frames {
			if _, ok := t.ids[name]; ok {
				continue
			}
			t.ids[name] = len(t.names)
			t.names = append(t.names, name)
		}
	}
	return t
}

// ID returns the id assigned to name.
func (t *FrameTable) ID(name string) (int, bool) {
	id, ok := t.ids[name]
	return id, ok
}

// Names returns the frame names in id order. The slice is shared; callers
// must not modify it.
func (t *FrameTable) Names() []string { return t.names }

// Len returns the number of distinct frames.
func (t *FrameTable) Len() int { return len(t.names) }
