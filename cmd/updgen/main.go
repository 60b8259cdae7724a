package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/techiew/UltimateProxyDLL/internal/gen"
	"github.com/techiew/UltimateProxyDLL/internal/locate"
	glog "github.com/techiew/UltimateProxyDLL/internal/log"
	"github.com/techiew/UltimateProxyDLL/internal/resolve"
	"github.com/techiew/UltimateProxyDLL/internal/slot"
)

var (
	verbose      bool
	manifestPath string
	outPath      string
	pkgName      string
	preview      bool
	disasm       bool
	probeDir     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "updgen",
		Short: "Generate and inspect proxy forwarding stubs",
		Long: `updgen maintains the mechanical side of a proxy shared library.

A proxy impersonates another library of the same file name: the host loads
the proxy, the proxy loads the real library and forwards every export. The
forwarding stubs are fixed at build time; updgen generates them from a slot
manifest, inspects a target library's export table, and previews the
locator search order.

Examples:
  updgen gen -m dinput8.yaml -o dinput8_stubs.go   # generate stubs
  updgen gen -m dinput8.yaml --preview             # highlight to stdout
  updgen exports libdinput8.so                     # name/ordinal table
  updgen exports libdinput8.so -m dinput8.yaml     # check slot coverage
  updgen probe /games/bin/libdinput8.so            # locator candidates`,
		DisableFlagsInUseLine: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")

	genCmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate forwarding stub source from a slot manifest",
		Args:  cobra.NoArgs,
		RunE:  runGen,
	}
	genCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "slot manifest (yaml)")
	genCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	genCmd.Flags().StringVar(&pkgName, "package", gen.DefaultPackage, "package name of the generated file")
	genCmd.Flags().BoolVar(&preview, "preview", false, "highlight the generated source to stdout")
	genCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(genCmd)

	exportsCmd := &cobra.Command{
		Use:   "exports <library.so>",
		Short: "List a library's exports by name and ordinal",
		Args:  cobra.ExactArgs(1),
		RunE:  runExports,
	}
	exportsCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "check slot coverage against this manifest")
	exportsCmd.Flags().BoolVar(&disasm, "disasm", false, "disassemble the first instructions of each export")
	rootCmd.AddCommand(exportsCmd)

	probeCmd := &cobra.Command{
		Use:   "probe <proxy-path>",
		Short: "Show the locator search order for a deployed proxy",
		Args:  cobra.ExactArgs(1),
		RunE:  runProbe,
	}
	probeCmd.Flags().StringVarP(&probeDir, "dir", "d", "", "caller-supplied directory (search order slot 1)")
	rootCmd.AddCommand(probeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLog() {
	glog.Init(verbose)
}

func runGen(cmd *cobra.Command, args []string) error {
	initLog()

	m, err := slot.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	g := &gen.Generator{Manifest: m, Package: pkgName}
	src, err := g.Source()
	if err != nil {
		return err
	}

	if preview {
		fmt.Print(gen.Preview(src))
		return nil
	}
	if outPath == "" {
		os.Stdout.Write(src)
		return nil
	}
	if err := os.WriteFile(outPath, src, 0o644); err != nil {
		return fmt.Errorf("write stubs: %w", err)
	}
	fmt.Printf("wrote %s (%d slots for %s)\n", outPath, len(m.Slots), m.Library)
	return nil
}

func runExports(cmd *cobra.Command, args []string) error {
	initLog()
	path := args[0]

	exports, err := resolve.Exports(path)
	if err != nil {
		return err
	}

	var dis *disassembler
	if disasm {
		dis, err = newDisassembler(path)
		if err != nil {
			return err
		}
	}

	fmt.Printf("%s: %d exported functions\n\n", filepath.Base(path), len(exports))
	for _, e := range exports {
		name := e.Name
		if name == "" {
			name = "(nameless)"
		}
		fmt.Printf("  %4d  0x%08x  %s\n", e.Ordinal, e.Value, name)
		if dis != nil {
			for _, line := range dis.first(e.Value, 4) {
				fmt.Printf("        %s\n", line)
			}
		}
	}

	if manifestPath != "" {
		m, err := slot.LoadManifest(manifestPath)
		if err != nil {
			return err
		}
		return checkCoverage(m, exports)
	}
	return nil
}

// checkCoverage reports declared slots the library does not implement and
// exports no slot covers. Absent slots are not an error at run time, but
// the generator's whole job is coverage, so the tool is stricter.
func checkCoverage(m *slot.Manifest, exports []resolve.Export) error {
	byName := make(map[string]bool, len(exports))
	byOrdinal := make(map[int]bool, len(exports))
	for _, e := range exports {
		if e.Name != "" {
			byName[e.Name] = true
		}
		byOrdinal[e.Ordinal] = true
	}

	fmt.Println()
	missing := 0
	for _, s := range m.Slots {
		if s.Name != "" && byName[s.Name] {
			continue
		}
		if s.Ordinal != 0 && byOrdinal[s.Ordinal] {
			continue
		}
		fmt.Printf("  slot %s not found in library\n", s.Key())
		missing++
	}

	uncovered := 0
	for _, e := range exports {
		if e.Name != "" && m.Index(e.Name) >= 0 {
			continue
		}
		covered := false
		for _, s := range m.Slots {
			if s.Ordinal == e.Ordinal {
				covered = true
				break
			}
		}
		if !covered {
			name := e.Name
			if name == "" {
				name = fmt.Sprintf("#%d", e.Ordinal)
			}
			fmt.Printf("  export %s has no slot\n", name)
			uncovered++
		}
	}

	if missing == 0 && uncovered == 0 {
		fmt.Printf("  manifest covers all %d exports\n", len(exports))
		return nil
	}
	return fmt.Errorf("coverage check failed: %d slots missing, %d exports uncovered", missing, uncovered)
}

func runProbe(cmd *cobra.Command, args []string) error {
	initLog()
	selfPath := args[0]

	l := locate.New()
	fmt.Printf("search order for %s:\n\n", filepath.Base(selfPath))
	chosen := ""
	for i, cand := range l.Candidates(selfPath, probeDir) {
		mark := " "
		if _, err := os.Stat(cand); err == nil {
			if chosen == "" {
				chosen = cand
				mark = "*"
			} else {
				mark = "+"
			}
		}
		fmt.Printf("  %d %s %s\n", i+1, mark, cand)
	}
	fmt.Println()
	if chosen == "" {
		fmt.Println("no candidate exists; CreateProxy would fail")
		return nil
	}
	// The probe never dlopens: loading runs library init code, which an
	// inspection tool must not trigger.
	fmt.Printf("would load: %s\n", chosen)
	return nil
}
