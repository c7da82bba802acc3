package process

// FiberStackSize is what a freshly allocated fiber stack costs the arena.
const FiberStackSize = 64 * 4 * 1024

// Memory is a server's arena. It accounts every allocation made on behalf of
// the server so that the total feeds the server digest; a crash wipes it.
type Memory struct {
	allocated   int64
	allocations int64
}

func NewMemory() *Memory {
	return &Memory{}
}

// Alloc returns a zeroed buffer of n bytes charged to the arena.
func (m *Memory) Alloc(n int) []byte {
	m.Charge(n)
	return make([]byte, n)
}

// Copy returns a copy of b charged to the arena.
func (m *Memory) Copy(b []byte) []byte {
	buf := m.Alloc(len(b))
	copy(buf, b)
	return buf
}

// Charge accounts n bytes without allocating.
func (m *Memory) Charge(n int) {
	m.allocated += int64(n)
	m.allocations++
}

// Release returns n bytes to the arena.
func (m *Memory) Release(n int) {
	m.allocated -= int64(n)
	if m.allocated < 0 {
		panic("Memory.Release: more bytes released than allocated")
	}
}

func (m *Memory) BytesAllocated() int64 {
	return m.allocated
}

func (m *Memory) Allocations() int64 {
	return m.allocations
}

// Reset forgets every allocation.
func (m *Memory) Reset() {
	m.allocated = 0
	m.allocations = 0
}
