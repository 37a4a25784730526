package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/1broseidon/tessera/internal/ipc"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgRed, color.Bold)
	keyColor   = color.New(color.FgYellow)
	mutedColor = color.New(color.Faint)
)

// newFlags builds a flag set that prints usage and a description.
func newFlags(name, usage, desc string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, desc)
		hasFlags := false
		fs.VisitAll(func(*flag.Flag) { hasFlags = true })
		if hasFlags {
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Flags:")
			fs.PrintDefaults()
		}
	}
	return fs
}

// parse returns -1 to continue, or the exit code.
func parse(fs *flag.FlagSet, args []string, nargs int) int {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != nargs {
		if nargs == 0 {
			fmt.Fprintf(os.Stderr, "%s takes no arguments\n", fs.Name())
		} else {
			fmt.Fprintf(os.Stderr, "%s takes %d arguments\n", fs.Name(), nargs)
		}
		fs.Usage()
		return 2
	}
	return -1
}

func yesNo(b bool) string {
	if b {
		return okColor.Sprint("on")
	}
	return mutedColor.Sprint("off")
}

func runStatus(args []string) int {
	fs := newFlags("status", "tessera status", "Show window manager status via IPC.")
	if code := parse(fs, args, 0); code >= 0 {
		return code
	}
	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	writeStatus(os.Stdout, status)
	return 0
}

func writeStatus(w io.Writer, s *ipc.StatusData) {
	fmt.Fprintf(w, "%s %s\n", keyColor.Sprint("uptime:             "), time.Duration(s.UptimeSeconds)*time.Second)
	fmt.Fprintf(w, "%s %d\n", keyColor.Sprint("managed_windows:    "), s.ManagedWindows)
	fmt.Fprintf(w, "%s %d\n", keyColor.Sprint("focused_window:     "), s.FocusedWindow)
	fmt.Fprintf(w, "%s %s\n", keyColor.Sprint("compositor:         "), yesNo(s.CompositorActive))
	fmt.Fprintf(w, "%s %s\n", keyColor.Sprint("namespace_extension:"), yesNo(s.NamespaceExtension))
	fmt.Fprintf(w, "%s %s (%d total)\n", keyColor.Sprint("current_namespace:  "), s.CurrentNamespace, s.Namespaces)
	fmt.Fprintf(w, "%s %s\n", keyColor.Sprint("detection:          "), s.Detection)
	writePolicy(w, &s.Policy)
}

func writePolicy(w io.Writer, p *ipc.PolicyData) {
	fmt.Fprintf(w, "%s %s\n", keyColor.Sprint("visual_indicators:  "), yesNo(p.VisualIndicators))
	fmt.Fprintf(w, "%s %s\n", keyColor.Sprint("security_warnings:  "), yesNo(p.SecurityWarnings))
	fmt.Fprintf(w, "%s %s\n", keyColor.Sprint("cross_ns_blocking:  "), yesNo(p.CrossNamespaceBlocking))
}

func runWindows(args []string) int {
	fs := newFlags("windows", "tessera windows", "List managed windows, most recently focused first.")
	if code := parse(fs, args, 0); code >= 0 {
		return code
	}
	data, err := ipc.NewClient().ListWindows()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, win := range data.Windows {
		marker := " "
		if win.Focused {
			marker = okColor.Sprint("*")
		}
		var flags []string
		if win.Maximized {
			flags = append(flags, "maximized")
		}
		if win.FixedSize {
			flags = append(flags, "fixed")
		}
		if win.SkipTaskbar {
			flags = append(flags, "skip-taskbar")
		}
		fmt.Printf("%s 0x%07x %-8s %-10s %4dx%-4d %+d%+d  %s %s\n",
			marker, win.Client, win.Type, win.Namespace,
			win.Width, win.Height, win.X, win.Y,
			win.Title, mutedColor.Sprint(strings.Join(flags, ",")))
	}
	return 0
}

func runNamespaces(args []string) int {
	fs := newFlags("namespaces", "tessera namespaces", "List isolation namespaces.")
	if code := parse(fs, args, 0); code >= 0 {
		return code
	}
	data, err := ipc.NewClient().ListNamespaces()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !data.Available {
		fmt.Println(mutedColor.Sprint("namespace extension not present; isolation is not enforced"))
	}
	for _, ns := range data.Namespaces {
		marker := " "
		if ns.ID == data.Current {
			marker = okColor.Sprint("*")
		}
		var tags []string
		if ns.Root {
			tags = append(tags, "root")
		}
		if ns.Default {
			tags = append(tags, "default")
		}
		fmt.Printf("%s %-12s %s %3d windows  %s\n",
			marker, ns.ID, ns.Color, ns.Windows,
			mutedColor.Sprint(strings.Join(append(tags, ns.Permissions...), ",")))
	}
	return 0
}

func runViolations(args []string) int {
	fs := newFlags("violations", "tessera violations [--limit N] [--mark-reviewed]",
		"List denied cross-namespace operations, oldest first.")
	limit := fs.Int("limit", 20, "Show only the newest N entries (0 = all)")
	mark := fs.Bool("mark-reviewed", false, "Mark every violation as reviewed")
	if code := parse(fs, args, 0); code >= 0 {
		return code
	}
	data, err := ipc.NewClient().ListViolations(*limit, *mark)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, v := range data.Violations {
		line := fmt.Sprintf("%s %s", v.Time.Local().Format(time.DateTime), v.String())
		if v.Reviewed {
			fmt.Println(mutedColor.Sprint(line))
		} else {
			fmt.Println(warnColor.Sprint(line))
		}
	}
	fmt.Printf("%d shown, %d total\n", len(data.Violations), data.Total)
	return 0
}

// toggleFlag is a flag that distinguishes "not given" from on/off.
type toggleFlag struct{ v *bool }

func (t *toggleFlag) String() string {
	if t == nil || t.v == nil {
		return ""
	}
	return strconv.FormatBool(*t.v)
}

func (t *toggleFlag) Set(s string) error {
	var b bool
	switch strings.ToLower(s) {
	case "on", "yes":
		b = true
	case "off", "no":
		b = false
	default:
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("want on or off, got %q", s)
		}
		b = parsed
	}
	t.v = &b
	return nil
}

func runPolicy(args []string) int {
	fs := newFlags("policy", "tessera policy [--indicators on|off] [--warnings on|off] [--blocking on|off]",
		"Show the namespace policy, or change the toggles that are given.")
	var indicators, warnings, blocking toggleFlag
	fs.Var(&indicators, "indicators", "Namespace accent on titlebars and borders")
	fs.Var(&warnings, "warnings", "Desktop notification on denied operations")
	fs.Var(&blocking, "blocking", "Deny operations across namespaces")
	if code := parse(fs, args, 0); code >= 0 {
		return code
	}

	client := ipc.NewClient()
	req := ipc.SetPolicyPayload{
		VisualIndicators:       indicators.v,
		SecurityWarnings:       warnings.v,
		CrossNamespaceBlocking: blocking.v,
	}
	var p *ipc.PolicyData
	if req.Empty() {
		status, err := client.GetStatus()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		p = &status.Policy
	} else {
		var err error
		if p, err = client.SetPolicy(req); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	writePolicy(os.Stdout, p)
	return 0
}

func runAssign(args []string) int {
	fs := newFlags("assign", "tessera assign <window-id> <namespace>",
		"Assign a managed window to a namespace. The id may be decimal or 0x hex.")
	if code := parse(fs, args, 2); code >= 0 {
		return code
	}
	win, err := strconv.ParseUint(fs.Arg(0), 0, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid window id %q: %v\n", fs.Arg(0), err)
		return 2
	}
	if err := ipc.NewClient().AssignWindow(uint32(win), fs.Arg(1)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runReload(args []string) int {
	fs := newFlags("reload", "tessera reload", "Ask the running window manager to reload its configuration.")
	if code := parse(fs, args, 0); code >= 0 {
		return code
	}
	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	okColor.Println("config reloaded")
	return 0
}
