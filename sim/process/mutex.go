package process

// Mutex is a fiber mutex. Waiters acquire it in FIFO order; Unlock hands
// ownership straight to the oldest waiter.
type Mutex struct {
	locked  bool
	waiters []func()
}

// Lock acquires m, parking the current fiber while it is held.
func (m *Mutex) Lock(p Parker) {
	if !m.locked {
		m.locked = true
		return
	}
	p.Suspend(func(wake func()) { m.waiters = append(m.waiters, wake) })
}

// TryLock acquires m if it is free.
func (m *Mutex) TryLock() bool {
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Unlock releases m. Panics if m is not locked.
func (m *Mutex) Unlock() {
	if !m.locked {
		panic("Mutex.Unlock() of unlocked mutex")
	}
	if len(m.waiters) == 0 {
		m.locked = false
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	next()
}

func (m *Mutex) IsLocked() bool {
	return m.locked
}
