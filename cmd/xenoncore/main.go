// Command xenoncore boots the Xenon PPC64 core: RAM size and eFuse lines
// are plain flags and the core topology is fixed (spec.md section 1 excludes a config-file
// parser), following main.go's flag.NewFlagSet/custom-Usage/explicit-exit-
// code convention.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/xenoncore/xenoncore/internal/debugconsole"
	"github.com/xenoncore/xenoncore/internal/soc"
	"github.com/xenoncore/xenoncore/internal/xlog"
)

func parseUintFlag(s string, fallback uint64) uint64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return fallback
	}
	return v
}

func main() {
	var (
		ramMB        uint
		resetPC      string
		consoleRev   uint
		cpuKeyDigest string
		fuseLocked   bool
		debug        bool
		verbose      bool
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.UintVar(&ramMB, "ram-mb", 512, "RAM size in megabytes")
	flagSet.StringVar(&resetPC, "reset-pc", "0x100", "initial CIA for every hardware thread (hex or decimal)")
	flagSet.UintVar(&consoleRev, "console-revision", 2, "eFuse console revision line")
	flagSet.StringVar(&cpuKeyDigest, "cpu-key-digest", "0x0", "eFuse CPU key digest (hex or decimal)")
	flagSet.BoolVar(&fuseLocked, "fuse-locked", true, "eFuse lockdown bit")
	flagSet.BoolVar(&debug, "debug", false, "attach the interactive debug console on stdin/stdout")
	flagSet.BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: xenoncore [-ram-mb 512] [-reset-pc 0x100] [-debug] [-verbose]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(-1)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := xlog.New(os.Stderr, level)

	cfg := soc.Config{
		RAMSize:         int(ramMB) * 1024 * 1024,
		ResetPC:         parseUintFlag(resetPC, 0x100),
		ConsoleRevision: uint8(consoleRev),
		CPUKeyDigest:    parseUintFlag(cpuKeyDigest, 0),
		FuseLocked:      fuseLocked,
		Log:             log,
	}

	machine, err := soc.New(cfg)
	if err != nil {
		fmt.Printf("Error: failed to initialize machine: %v\n", err)
		os.Exit(-1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var console *debugconsole.Console
	if debug {
		console = debugconsole.New(machine, os.Stdout, log)
		go func() {
			if err := console.Run(os.Stdin, int(os.Stdin.Fd())); err != nil {
				log.Warn("debug console exited", "err", err)
			}
		}()
	}

	if err := machine.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Printf("Error: machine halted: %v\n", err)
		if console != nil {
			console.Stop()
		}
		os.Exit(-1)
	}
	if console != nil {
		console.Stop()
	}
}
