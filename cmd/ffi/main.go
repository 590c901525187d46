package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-ffi/ffi"
	"github.com/wippyai/wasm-ffi/memory"
	"github.com/wippyai/wasm-ffi/wasmhost"
)

func main() {
	var (
		list        = flag.Bool("list", false, "List exported shims and exit")
		callName    = flag.String("call", "", "Shim to call, by symbol or Go name")
		args        = flag.String("args", "", "Comma separated arguments; list elements are space separated")
		pages       = flag.Uint("pages", 1, "Linear memory size in 64KiB pages")
		verbose     = flag.Bool("v", false, "Debug logging to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *verbose {
		if err := enableLogging(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if !*list && *callName == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: ffi -list")
		fmt.Fprintln(os.Stderr, "       ffi -call <shim> [-args a,b,...]")
		fmt.Fprintln(os.Stderr, "       ffi -i  (interactive mode)")
		os.Exit(1)
	}

	ctx := context.Background()
	s, err := newSession(ctx, uint32(*pages))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if *interactive {
		if err := runInteractive(s); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	p := palette{enabled: term.IsTerminal(int(os.Stdout.Fd()))}
	if *list {
		printShims(os.Stdout, p, s.shims())
		return
	}
	if err := runCall(os.Stdout, p, s, *callName, splitArgs(*args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func enableLogging() error {
	l, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	ffi.SetLogger(l.Named("ffi"))
	memory.SetLogger(l.Named("memory"))
	wasmhost.SetLogger(l.Named("wasmhost"))
	return nil
}

// palette styles output only when it goes to a terminal.
type palette struct {
	enabled bool
}

func (p palette) render(style lipgloss.Style, s string) string {
	if !p.enabled {
		return s
	}
	return style.Render(s)
}

func printShims(w io.Writer, p palette, shims []*ffi.Shim) {
	fmt.Fprintln(w, p.render(titleStyle, "Exported shims"))
	fmt.Fprintln(w)
	for _, sh := range shims {
		fmt.Fprintf(w, "  %s\n", p.render(funcStyle, sh.Signature()))
		fmt.Fprintf(w, "    %s\n", p.render(helpStyle, sh.Prototype()))
	}
}

func runCall(w io.Writer, p palette, s *session, name string, args []string) error {
	out, err := s.call(name, args)
	if err != nil {
		return err
	}
	printOutcome(w, p, out)
	return nil
}

func printOutcome(w io.Writer, p palette, out *outcome) {
	fmt.Fprintln(w, p.render(funcStyle, out.Signature))
	status := out.Status.String()
	if out.Status == ffi.Ok {
		status = p.render(resultStyle, status)
	} else {
		status = p.render(errorStyle, status)
	}
	fmt.Fprintf(w, "status: %s\n", status)
	for i, r := range out.Results {
		fmt.Fprintf(w, "out%d: %s\n", i, p.render(resultStyle, r))
	}
	for _, b := range out.Borrows {
		fmt.Fprintf(w, "after call, %s\n", p.render(typeStyle, b))
	}
}
