package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"golang.org/x/arch/arm/armasm"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/probst/microprobe/internal/config"
	"github.com/probst/microprobe/internal/emulator"
	glog "github.com/probst/microprobe/internal/log"
	"github.com/probst/microprobe/internal/probe"
	"github.com/probst/microprobe/internal/script"
	"github.com/probst/microprobe/internal/trace"
	"github.com/probst/microprobe/internal/ui/benchui"
	"github.com/probst/microprobe/internal/ui/colorize"
)

var (
	verbose   bool
	quiet     bool
	maxInsn   uint64
	cfgPath   string
	benchIter int
	benchUI   bool
	imagePath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "microprobe",
		Short: "Run and verify firmware test probes",
		Long: `Microprobe runs a fixed suite of test and benchmark probes - recursive
Fibonacci, a cos/sqrt iteration loop, trig/pow wrappers, an unchecked
buffer copy and a breakpoint trap - natively on the host, and verifies
the same routines inside an ARM Thumb firmware image through controlled
emulation.

The verify command emulates the image with Unicorn Engine, calls each
probe function by symbol with arguments in r0-r3, and compares the result
against the native reference. BKPT 0xAB is serviced as semihosting; any
other BKPT immediate is treated as a debug trap and skipped.

Examples:
  microprobe run                      # Run all native probes
  microprobe bench --ui               # Benchmark probes with a live view
  microprobe verify tests.elf         # Verify an emulated firmware image
  microprobe info tests.elf           # Show image info
  microprobe script checks.js         # Drive probes from JavaScript`,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runNative(cmd, args)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode (results only)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config")

	runCmd := &cobra.Command{
		Use:   "run [probe...]",
		Short: "Run native probes",
		RunE:  runNative,
	}
	rootCmd.AddCommand(runCmd)

	benchCmd := &cobra.Command{
		Use:   "bench [probe...]",
		Short: "Benchmark native probes",
		RunE:  runBench,
	}
	benchCmd.Flags().IntVarP(&benchIter, "iterations", "i", 0, "iterations per probe (0 = config default)")
	benchCmd.Flags().BoolVar(&benchUI, "ui", false, "live terminal UI")
	rootCmd.AddCommand(benchCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify <image.elf>",
		Short: "Verify firmware probes under emulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}
	verifyCmd.Flags().Uint64VarP(&maxInsn, "num", "n", 0, "instruction budget per call (0 = config default)")
	rootCmd.AddCommand(verifyCmd)

	infoCmd := &cobra.Command{
		Use:   "info <image.elf>",
		Short: "Show firmware image information",
		Args:  cobra.ExactArgs(1),
		RunE:  showInfo,
	}
	rootCmd.AddCommand(infoCmd)

	scriptCmd := &cobra.Command{
		Use:   "script <file.js>",
		Short: "Drive probes from a JavaScript file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}
	scriptCmd.Flags().StringVar(&imagePath, "image", "", "firmware image for harness bindings")
	rootCmd.AddCommand(scriptCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type traceCollector struct {
	mu     sync.Mutex
	events []*trace.Event
}

func (tc *traceCollector) Add(e *trace.Event) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.events = append(tc.events, e)
}

func (tc *traceCollector) GetAndClear() []*trace.Event {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	events := tc.events
	tc.events = nil
	return events
}

type outputWriter struct {
	ch     chan string
	done   chan struct{}
	writer *bufio.Writer
}

func newOutputWriter() *outputWriter {
	w := &outputWriter{
		ch:     make(chan string, 2048),
		done:   make(chan struct{}),
		writer: bufio.NewWriterSize(os.Stdout, 64*1024),
	}
	go w.run()
	return w
}

func (w *outputWriter) run() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-w.ch:
			if !ok {
				w.writer.Flush()
				close(w.done)
				return
			}
			w.writer.WriteString(line)
			w.writer.WriteByte('\n')
		case <-ticker.C:
			w.writer.Flush()
		}
	}
}

func (w *outputWriter) Write(line string) {
	select {
	case w.ch <- line:
	default:
	}
}

func (w *outputWriter) Close() {
	close(w.ch)
	<-w.done
}

// disasm decodes a guest instruction for trace output. x/arch has no Thumb
// decoder, so Thumb halfwords render raw; 4-byte A32 words go through
// armasm.
func disasm(code []byte) string {
	if len(code) >= 4 {
		if inst, err := armasm.Decode(code, armasm.ModeARM); err == nil {
			return inst.String()
		}
	}
	if len(code) >= 2 {
		return fmt.Sprintf(".short 0x%02x%02x", code[1], code[0])
	}
	return "???"
}

func formatLine(addr uint64, code []byte, dis string, funcName string) string {
	var b strings.Builder
	b.Grow(128)

	b.WriteString(colorize.Address(addr))
	b.WriteString("  ")

	if len(code) >= 2 {
		hexBytes := fmt.Sprintf("%02X%02X", code[1], code[0])
		b.WriteString(colorize.HexBytes(hexBytes))
		b.WriteString("  ")
	}

	b.WriteString(colorize.Instruction(dis))

	if funcName != "" {
		b.WriteString("  ")
		b.WriteString(colorize.FuncName(funcName))
	}

	return b.String()
}

func setup() (config.Config, error) {
	glog.Init(verbose)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	probe.FloatTolerance = cfg.Verify.Tolerance
	return cfg, nil
}

func selectNative(args []string) ([]probe.NativeProbe, error) {
	if len(args) == 0 {
		return probe.NativeProbes(), nil
	}
	var out []probe.NativeProbe
	for _, name := range args {
		p, ok := probe.FindNative(name)
		if !ok {
			return nil, fmt.Errorf("unknown probe %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}

func runNative(cmd *cobra.Command, args []string) error {
	if _, err := setup(); err != nil {
		return err
	}

	probes, err := selectNative(args)
	if err != nil {
		return err
	}

	for _, p := range probes {
		result := p.Result()
		if quiet {
			fmt.Printf("%s %s\n", p.Name, result)
			continue
		}
		fmt.Printf("%s  %s\n  %s\n",
			colorize.FuncName(fmt.Sprintf("%-16s", p.Name)),
			colorize.Detail(p.Desc),
			result)
	}

	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	probes, err := selectNative(args)
	if err != nil {
		return err
	}

	iterations := benchIter
	if iterations <= 0 {
		iterations = cfg.Bench.Iterations
	}

	results := make(chan benchui.Result)
	go func() {
		defer close(results)
		for _, p := range probes {
			work := p.Work
			if p.Name == "bench_math" {
				seed := float32(cfg.Bench.Seed)
				work = func() { probe.BenchMath(seed) }
			}
			start := time.Now()
			for i := 0; i < iterations; i++ {
				work()
			}
			total := time.Since(start)
			results <- benchui.Result{
				Name:       p.Name,
				Iterations: iterations,
				Total:      total,
				PerOp:      total / time.Duration(iterations),
			}
		}
	}()

	if benchUI {
		_, err := benchui.Run(len(probes), results)
		return err
	}

	for r := range results {
		fmt.Printf("%s  %s\n",
			colorize.FuncName(fmt.Sprintf("%-16s", r.Name)),
			colorize.Detail(fmt.Sprintf("%d iterations  %v total  %v/op",
				r.Iterations, r.Total.Round(time.Microsecond), r.PerOp.Round(time.Nanosecond))))
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	image := args[0]

	h, info, err := emulator.NewELFHarness(image)
	if err != nil {
		return err
	}
	defer h.Close()

	h.MaxInsn = cfg.Harness.MaxInsn
	if maxInsn > 0 {
		h.MaxInsn = maxInsn
	}

	// Collect call/bkpt/semihost events emitted through the logger
	collector := &traceCollector{}
	if glog.L != nil {
		glog.L.SetOnTrace(func(pc uint64, category, name, detail string) {
			e := trace.NewEvent(pc, category, name, detail)
			trace.DefaultEnricher(e)
			collector.Add(e)
		})
	}

	addrToSym := make(map[uint64]string, len(info.Symbols))
	for name, addr := range info.Symbols {
		a := addr &^ 1 // strip Thumb bit for lookup
		if existing, ok := addrToSym[a]; !ok || len(name) < len(existing) {
			addrToSym[a] = name
		}
	}

	var out *outputWriter
	if verbose {
		out = newOutputWriter()
		h.Emu.HookCode(func(e *emulator.Emulator, addr uint64, size uint32) {
			code, _ := e.MemRead(addr, uint64(size))
			out.Write(formatLine(addr, code, disasm(code), addrToSym[addr]))
		})
	}

	session := uuid.New()
	if !quiet {
		printHeader(image, info, session)
	}

	// Select probes: config filter or the whole registry
	probes := probe.DefaultRegistry.All()
	if len(cfg.Verify.Probes) > 0 {
		var selected []*probe.GuestProbe
		for _, name := range cfg.Verify.Probes {
			p, ok := probe.DefaultRegistry.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown probe %q in config", name)
			}
			selected = append(selected, p)
		}
		probes = selected
	}

	passed, failed, skipped := 0, 0, 0
	for _, p := range probes {
		if !p.Resolvable(h) {
			skipped++
			if !quiet {
				fmt.Printf("  %s %s  %s\n",
					colorize.Detail("skip"),
					colorize.FuncName(fmt.Sprintf("%-16s", p.Symbol)),
					colorize.Comment("symbol not in image"))
			}
			continue
		}

		glog.L.ProbeStart(p.Symbol, "emulated")
		err := p.Verify(h)
		events := collector.GetAndClear()
		glog.L.ProbeResult(p.Symbol, err == nil, fmt.Sprintf("%d insn", h.InsnCount()))

		if err != nil {
			failed++
			fmt.Printf("  %s %s  %s\n",
				colorize.Fail("FAIL"),
				colorize.FuncName(fmt.Sprintf("%-16s", p.Symbol)),
				colorize.Error(err.Error()))
		} else {
			passed++
			if !quiet {
				fmt.Printf("  %s %s  %s\n",
					colorize.Pass("PASS"),
					colorize.FuncName(fmt.Sprintf("%-16s", p.Symbol)),
					colorize.Detail(fmt.Sprintf("%d insn", h.InsnCount())))
			}
		}

		if verbose {
			for _, ev := range events {
				fmt.Printf("      %s %s %s\n",
					colorize.Tag(ev.PrimaryTag()), ev.Name, colorize.Detail(ev.Detail))
			}
		}
	}

	if out != nil {
		out.Close()
	}

	if !quiet {
		fmt.Println()
		fmt.Printf("%s %s passed  %s failed  %s skipped\n",
			colorize.Detail("────────"),
			colorize.FuncName(fmt.Sprintf("%d", passed)),
			colorize.FuncName(fmt.Sprintf("%d", failed)),
			colorize.FuncName(fmt.Sprintf("%d", skipped)))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d probes failed", failed, passed+failed)
	}
	return nil
}

func printHeader(binary string, info *emulator.ELFInfo, session uuid.UUID) {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, binary); err == nil && !strings.HasPrefix(rel, "..") {
			binary = rel
		}
	}

	fmt.Println()
	fmt.Printf("%s microprobe ─ firmware probe verifier\n", colorize.Header("▶"))
	fmt.Printf("  %s %s\n", colorize.Detail("Image:"), binary)
	fmt.Printf("  %s %s  %s %s\n",
		colorize.Detail("Base:"), colorize.Address(info.BaseAddr),
		colorize.Detail("Entry:"), colorize.Address(info.Entry))
	fmt.Printf("  %s %s  %s %s\n",
		colorize.Detail("Symbols:"), colorize.FuncName(fmt.Sprintf("%d", len(info.Symbols))),
		colorize.Detail("Session:"), colorize.Detail(session.String()))
	fmt.Println()
}

func showInfo(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	binaryPath := args[0]

	absPath, err := filepath.Abs(binaryPath)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("file not found: %s", absPath)
	}

	emu, err := emulator.New()
	if err != nil {
		return fmt.Errorf("create emulator: %w", err)
	}
	defer emu.Close()

	info, err := emu.LoadELF(absPath)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}

	fmt.Printf("Image:   %s\n", filepath.Base(absPath))
	fmt.Printf("Base:    0x%x\n", info.BaseAddr)
	fmt.Printf("End:     0x%x\n", info.EndAddr)
	fmt.Printf("Entry:   0x%x\n", info.FindEntryPoint(cfg.Harness.Entry))
	fmt.Printf("Symbols: %d\n\n", len(info.Symbols))

	fmt.Println("Probe symbols:")
	found := 0
	for _, p := range probe.DefaultRegistry.All() {
		for _, name := range p.Names() {
			if addr := info.FindSymbol(name); addr != 0 {
				fmt.Printf("  0x%08x %s\n", addr, name)
				found++
			}
		}
	}
	if found == 0 {
		fmt.Println("  none found")
	}

	return nil
}

func runScript(cmd *cobra.Command, args []string) error {
	if _, err := setup(); err != nil {
		return err
	}

	var h *emulator.Harness
	if imagePath != "" {
		var err error
		h, _, err = emulator.NewELFHarness(imagePath)
		if err != nil {
			return err
		}
		defer h.Close()
	}

	eng, err := script.New(h)
	if err != nil {
		return err
	}

	v, err := eng.RunFile(args[0])
	if err != nil {
		return err
	}
	if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		fmt.Println(v.String())
	}
	return nil
}
