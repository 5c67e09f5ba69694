// Package debugconsole implements an interactive register-dump/breakpoint/
// step-report console over stdin/stdout (spec.md section 5's debug-facing
// operations). Its raw-mode stdin handling and stop/done goroutine
// bookkeeping is lifted directly from terminal_host.go's TerminalHost,
// generalized from routing bytes into a TerminalMMIO device to parsing
// line-buffered debugger commands against a running soc.SOC.
package debugconsole

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/xenoncore/xenoncore/internal/soc"
)

// Console reads commands from stdin and reports machine state from an
// attached soc.SOC; only instantiated by cmd/xenoncore for interactive use.
type Console struct {
	machine *soc.SOC
	out     io.Writer
	log     *slog.Logger

	breakpoints map[uint64]bool

	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once

	fd           int
	oldTermState *term.State
}

// New returns a console bound to machine, writing command output to out.
func New(machine *soc.SOC, out io.Writer, log *slog.Logger) *Console {
	return &Console{
		machine:     machine,
		out:         out,
		log:         log,
		breakpoints: make(map[uint64]bool),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Run puts fd into raw line-editing-disabled mode and processes commands
// until Stop is called or stdin closes. It restores the terminal on return.
func (c *Console) Run(stdin io.Reader, fd int) error {
	c.fd = fd
	if oldState, err := term.MakeRaw(fd); err == nil {
		c.oldTermState = oldState
	} else {
		c.log.Warn("debugconsole: raw mode unavailable, falling back to line mode", "err", err)
	}
	defer c.restore()

	scanner := bufio.NewScanner(stdin)
	scanner.Split(bufio.ScanLines)

	for scanner.Scan() {
		select {
		case <-c.stopCh:
			close(c.done)
			return nil
		default:
		}
		c.dispatch(strings.TrimSpace(scanner.Text()))
	}
	close(c.done)
	return scanner.Err()
}

// Stop requests Run return at its next command boundary and waits for it.
func (c *Console) Stop() {
	c.stopped.Do(func() { close(c.stopCh) })
	<-c.done
	c.restore()
}

func (c *Console) restore() {
	if c.oldTermState != nil {
		_ = term.Restore(c.fd, c.oldTermState)
		c.oldTermState = nil
	}
}

func (c *Console) dispatch(line string) {
	if line == "" {
		return
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "regs":
		c.cmdRegs(fields[1:])
	case "break":
		c.cmdBreak(fields[1:])
	case "clear":
		c.cmdClearBreak(fields[1:])
	case "step":
		c.cmdStep(fields[1:])
	case "pause":
		c.machine.Signals.Pause()
	case "resume":
		c.machine.Signals.Resume()
	case "help":
		fmt.Fprintln(c.out, "commands: regs <thread>, break <addr>, clear <addr>, step <thread>, pause, resume")
	default:
		fmt.Fprintf(c.out, "debugconsole: unknown command %q\n", fields[0])
	}
}

func (c *Console) threadArg(args []string) (int, bool) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "debugconsole: missing thread id")
		return 0, false
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 0 || id >= soc.ThreadCount {
		fmt.Fprintf(c.out, "debugconsole: invalid thread id %q\n", args[0])
		return 0, false
	}
	return id, true
}

// cmdRegs dumps one hardware thread's GPR/CR/CIA/MSR state (spec.md
// section 3's PPU_THREAD_REGISTERS fields).
func (c *Console) cmdRegs(args []string) {
	id, ok := c.threadArg(args)
	if !ok {
		return
	}
	t := c.machine.Threads[id].Regs
	fmt.Fprintf(c.out, "thread %d: CIA=%#016x NIA=%#016x MSR=%#016x CR=%#08x\n", id, t.CIA, t.NIA, t.MSR, t.CR)
	for i := 0; i < 32; i += 4 {
		fmt.Fprintf(c.out, "  r%-2d=%#016x r%-2d=%#016x r%-2d=%#016x r%-2d=%#016x\n",
			i, t.GPR[i], i+1, t.GPR[i+1], i+2, t.GPR[i+2], i+3, t.GPR[i+3])
	}
}

func parseAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	return strconv.ParseUint(s, 16, 64)
}

// cmdBreak and cmdClearBreak maintain a software breakpoint set; the PPU
// loop itself doesn't consult it directly — a future single-step driver
// would check Breakpoints() before calling Thread.Run per-instruction.
func (c *Console) cmdBreak(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "debugconsole: missing address")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "debugconsole: bad address %q: %v\n", args[0], err)
		return
	}
	c.breakpoints[addr] = true
	fmt.Fprintf(c.out, "breakpoint set at %#016x\n", addr)
}

func (c *Console) cmdClearBreak(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "debugconsole: missing address")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "debugconsole: bad address %q: %v\n", args[0], err)
		return
	}
	delete(c.breakpoints, addr)
	fmt.Fprintf(c.out, "breakpoint cleared at %#016x\n", addr)
}

// Breakpoints reports whether addr currently has a software breakpoint.
func (c *Console) Breakpoints(addr uint64) bool { return c.breakpoints[addr] }

// cmdStep requires the machine to be already paused via the "pause"
// command, executes nothing itself (the PPU loop is owned by soc.SOC.Run's
// goroutines), and reports the thread's current PC; it does not pause the
// machine or execute a single instruction.
func (c *Console) cmdStep(args []string) {
	id, ok := c.threadArg(args)
	if !ok {
		return
	}
	if !c.machine.Signals.Paused() {
		fmt.Fprintln(c.out, "debugconsole: pause the machine before stepping")
		return
	}
	t := c.machine.Threads[id].Regs
	fmt.Fprintf(c.out, "thread %d at CIA=%#016x (single-step execution happens once resumed)\n", id, t.CIA)
}
