// Package iic implements the per-thread interrupt controller of spec.md
// section 4.6: a 64-slot priority-indexed pending array per thread, a
// current-priority register, and the raise/cancel/ack/eoi operation set.
//
// The MMIO shadow-register command dispatch pattern in
// coprocessor_manager.go (readReg/writeReg/dispatchCmd, a small mutex
// guarding a handful of scalar fields) is the model for how the controller
// itself is organized, generalized from "one manager for up to six
// coprocessor slots" to "one controller state block per hardware thread,
// six in total, addressed by the PCI bridge's routing registers."
package iic

import "sync"

// Priority enumerates the fixed interrupt sources spec.md section 3 lists.
type Priority int

const (
	PriorityClock Priority = iota
	PriorityGraphics
	PriorityODD
	PriorityHDD
	PriorityOHCI0
	PriorityOHCI1
	PriorityEHCI0
	PriorityEHCI1
	PriorityEthernet
	PriorityXMA
	PriorityAudio
	PrioritySMM
	PrioritySFCX
	PriorityXPS
	numPriorities
)

// pendingSlots is the size of each thread's priority-indexed arrays; the
// named Priority values above occupy the low slots.
const pendingSlots = 64

// threadState is one hardware thread's interrupt queue.
type threadState struct {
	mu           sync.Mutex
	enabled      [pendingSlots]bool
	pending      [pendingSlots]bool
	current      Priority
	hasCurrent   bool
	priorityStack []Priority
	notify       chan struct{} // buffered 1; woken PPU loop drains it
}

func newThreadState() *threadState {
	t := &threadState{notify: make(chan struct{}, 1)}
	for p := range t.enabled {
		t.enabled[p] = true
	}
	return t
}

func (t *threadState) wake() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// Controller holds one threadState per hardware thread (spec.md section
// 4.6: "Per-thread: a 64-slot priority-indexed pending array").
type Controller struct {
	threads []*threadState
}

// New returns a controller sized for n hardware threads.
func New(n int) *Controller {
	c := &Controller{threads: make([]*threadState, n)}
	for i := range c.threads {
		c.threads[i] = newThreadState()
	}
	return c
}

// Raise marks priority pending for target, delivered at the thread's next
// architectural boundary if enabled and higher than the current priority
// (spec.md section 4.6). The PCI bridge is the sole caller in normal
// operation; source is not used.
func (c *Controller) Raise(target int, priority Priority, source int) {
	t := c.threads[target]
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled[priority] {
		return
	}
	t.pending[priority] = true
	if !t.hasCurrent || priority > t.current {
		t.wake()
	}
}

// Cancel clears a pending slot without acknowledging it.
func (c *Controller) Cancel(target int, priority Priority) {
	t := c.threads[target]
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[priority] = false
}

// SetEnabled toggles whether a priority line can assert on this thread.
func (c *Controller) SetEnabled(target int, priority Priority, enabled bool) {
	t := c.threads[target]
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled[priority] = enabled
}

// Pending reports whether target has any pending interrupt strictly above
// its current in-service priority — the PPU loop's boundary check
// (spec.md section 4.7 step 2).
func (c *Controller) Pending(target int) bool {
	t := c.threads[target]
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.highestPendingLocked() != -1
}

func (t *threadState) highestPendingLocked() int {
	best := -1
	for p := pendingSlots - 1; p >= 0; p-- {
		if t.pending[p] && t.enabled[p] {
			best = int(p)
			break
		}
	}
	if best == -1 {
		return -1
	}
	if t.hasCurrent && Priority(best) <= t.current {
		return -1
	}
	return best
}

// Ack reads the highest pending priority above the current in-service
// priority, clears its pending bit, pushes the prior current priority, and
// makes it current (spec.md section 4.6: "reads the highest pending
// priority, clears it, and returns it").
func (c *Controller) Ack(target int) (Priority, bool) {
	t := c.threads[target]
	t.mu.Lock()
	defer t.mu.Unlock()
	best := t.highestPendingLocked()
	if best == -1 {
		return 0, false
	}
	t.pending[best] = false
	if t.hasCurrent {
		t.priorityStack = append(t.priorityStack, t.current)
	}
	t.current = Priority(best)
	t.hasCurrent = true
	return t.current, true
}

// EOI restores the previous current-priority from the internal stack; must
// pair with Ack in LIFO order (spec.md section 4.6).
func (c *Controller) EOI(target int) {
	t := c.threads[target]
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.priorityStack); n > 0 {
		t.current = t.priorityStack[n-1]
		t.priorityStack = t.priorityStack[:n-1]
		t.hasCurrent = true
	} else {
		t.hasCurrent = false
	}
}

// WaitChannel returns the channel a napping PPU loop selects on to wake for
// a newly-raised interrupt (spec.md section 5, suspension point (a)).
func (c *Controller) WaitChannel(target int) <-chan struct{} {
	return c.threads[target].notify
}
