// corefuzz is a coverage-guided, AFL-style greybox fuzzer: it launches a
// target binary once per candidate input, harvests edge coverage over a
// System-V shared-memory region, and mutates its way toward new coverage.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fluxfuzzer/corefuzz/internal/aggression"
	"github.com/fluxfuzzer/corefuzz/internal/config"
	"github.com/fluxfuzzer/corefuzz/internal/corpus"
	"github.com/fluxfuzzer/corefuzz/internal/engine"
	"github.com/fluxfuzzer/corefuzz/internal/mutator"
	"github.com/fluxfuzzer/corefuzz/internal/report"
	"github.com/fluxfuzzer/corefuzz/internal/runner"
	"github.com/fluxfuzzer/corefuzz/internal/ui"
	"github.com/fluxfuzzer/corefuzz/internal/web"
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

var version = "0.1.0-dev"

// exit codes per spec.md §6.
const (
	exitOK              = 0
	exitTargetMissing   = 2
	exitSeedsMissing    = 3
	exitOutdirCreateErr = 4
)

var (
	targetCmd      []string
	seedsDir       string
	outDir         string
	runSeconds     int
	mode           string
	timeoutSeconds int
	statusInterval int
	configFile     string
	noTUI          bool
	enableWeb      bool
	webAddr        string
	maxExecsPerSec float64
)

func main() {
	root := &cobra.Command{
		Use:   "corefuzz",
		Short: "corefuzz - coverage-guided greybox fuzzer",
		Long: `corefuzz drives a target binary with mutated inputs, tracking
AFL-style edge coverage over a shared-memory bitmap and scheduling new
candidates by energy, favoring inputs that discover new edges.`,
		RunE: runFuzz,
	}

	root.Flags().StringSliceVar(&targetCmd, "target", nil, "target command and args (tokens; @@ substituted with input path in file mode)")
	root.Flags().StringVar(&seedsDir, "seeds", "", "directory of seed inputs")
	root.Flags().StringVar(&outDir, "outdir", "out", "output directory for corpus/crashes/artifacts")
	root.Flags().IntVar(&runSeconds, "time", 3600, "total run time in seconds")
	root.Flags().StringVar(&mode, "mode", "stdin", `input delivery mode: "stdin" or "file"`)
	root.Flags().IntVar(&timeoutSeconds, "timeout", 2, "per-run timeout in seconds")
	root.Flags().IntVar(&statusInterval, "status-interval", 5, "status reporter refresh interval in seconds")
	root.Flags().StringVar(&configFile, "config", "", "optional YAML config overlay")
	root.Flags().BoolVar(&noTUI, "no-tui", false, "disable the terminal dashboard, print plain status lines instead")
	root.Flags().BoolVar(&enableWeb, "web", false, "serve a read-only status dashboard over HTTP/WebSocket")
	root.Flags().StringVar(&webAddr, "web-addr", "", "address for --web to listen on (overrides config)")
	root.Flags().Float64Var(&maxExecsPerSec, "max-execs-per-sec", 0, "throttle executions per second (0 disables, overrides config)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("corefuzz version %s\n", version)
		},
	}
	root.AddCommand(versionCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runFuzz(cmd *cobra.Command, args []string) error {
	printBanner()

	if len(targetCmd) == 0 {
		fmt.Fprintln(os.Stderr, "  [!] no --target specified")
		os.Exit(exitTargetMissing)
	}
	targetPath := targetCmd[0]
	if _, err := os.Stat(targetPath); err != nil {
		fmt.Fprintf(os.Stderr, "  [!] target not found: %s\n", targetPath)
		os.Exit(exitTargetMissing)
	}

	parsedMode, err := types.ParseMode(mode)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	if noTUI {
		cfg.Output.EnableTUI = false
	}
	if enableWeb {
		cfg.Output.EnableWeb = true
	}
	if webAddr != "" {
		cfg.Output.WebAddr = webAddr
	}
	if maxExecsPerSec > 0 {
		cfg.Target.MaxExecsPerSec = maxExecsPerSec
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "  [!] could not create outdir %s: %v\n", outDir, err)
		os.Exit(exitOutdirCreateErr)
	}

	sched, err := corpus.NewScheduler(outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  [!] could not create outdir %s: %v\n", outDir, err)
		os.Exit(exitOutdirCreateErr)
	}
	sched.FavoredCapacity = cfg.Scheduler.FavoredCapacity
	sched.FavoredTTL = cfg.Scheduler.FavoredTTL
	sched.ExploreFraction = cfg.Scheduler.ExploreFraction
	sched.ExploreFractionStagnant = cfg.Scheduler.ExploreFractionStagnant
	sched.FavoredSelectProb = cfg.Scheduler.FavoredSelectProb
	sched.MaintenanceEvery = cfg.Scheduler.MaintenanceEvery
	sched.StagnationWindow = cfg.Scheduler.StagnationWindow
	sched.StagnationGrowth = cfg.Scheduler.StagnationGrowth
	sched.FavoredReselectMax = cfg.Scheduler.FavoredReselectTTL

	if err := loadSeeds(sched, seedsDir); err != nil {
		fmt.Fprintf(os.Stderr, "  [!] seeds: %v\n", err)
		os.Exit(exitSeedsMissing)
	}

	timeout := time.Duration(timeoutSeconds) * time.Second
	workDir := filepath.Join(outDir, "work")
	artifactDir := filepath.Join(outDir, "artifacts")
	r, err := runner.New(targetPath, targetCmd[1:], parsedMode, timeout, workDir, artifactDir)
	if err != nil {
		return fmt.Errorf("constructing runner: %w", err)
	}

	reg := buildRegistry(cfg, sched)
	aggr := aggression.NewManager(cfg.Aggression.Cooldown, cfg.Aggression.MinDuration, cfg.Aggression.Scale)
	for _, m := range reg.All() {
		if w, ok := m.(aggression.Widener); ok {
			aggr.Register(w)
		}
	}

	loopCfg := engine.DefaultConfig()
	loopCfg.Runtime = time.Duration(runSeconds) * time.Second
	loopCfg.SpecializedBiasOK = cfg.Mutator.SpecializedProb
	loopCfg.SpecializedBiasSlow = cfg.Mutator.SlowSpecializedProb
	loopCfg.StagnationWindow = cfg.Scheduler.StagnationWindow
	loopCfg.MaxExecsPerSec = cfg.Target.MaxExecsPerSec

	sniff := engine.DetectFormat(sched)
	loop := engine.New(loopCfg, sched, r, reg, aggr, sniff, parsedMode, timeout, slog.Default())
	if err := loop.Monitor().SetArtifactDir(filepath.Join(outDir, "monitor_artifacts"), cfg.Output.NoveltyThreshold); err != nil {
		fmt.Fprintf(os.Stderr, "  [!] could not create monitor artifacts dir: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	loop.Start(ctx)

	var dashProgram *tea.Program
	if cfg.Output.EnableTUI {
		dash := ui.NewDashboard(ui.NewStats(loop.Monitor(), loop.Scheduler()))
		dash.SetTarget(targetPath, loopCfg.Runtime)
		dash.Start()
		dashProgram = ui.RunWithProgram(dash)
		go func() {
			if _, err := dashProgram.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "  [!] TUI exited: %v\n", err)
			}
		}()
	} else {
		fmt.Printf("  [*] fuzzing %s for %ds (outdir=%s)\n", targetPath, runSeconds, outDir)
	}

	var webServer *web.Server
	if cfg.Output.EnableWeb {
		webServer = web.NewServer(targetPath, loop.Monitor(), loop.Scheduler(), loop.Clusterer())
		go func() {
			if err := webServer.Start(cfg.Output.WebAddr); err != nil {
				fmt.Fprintf(os.Stderr, "  [!] web dashboard exited: %v\n", err)
			}
		}()
	}

	shutdown := func() {
		loop.Stop()
		cancel()
		if dashProgram != nil {
			dashProgram.Quit()
		}
		if webServer != nil {
			webServer.SetRunning(false)
			webServer.Stop()
		}
		printSummary(loop)
		writeReports(loop, targetPath, outDir)
	}

	ticker := time.NewTicker(time.Duration(statusInterval) * time.Second)
	defer ticker.Stop()

	deadline := time.After(time.Duration(runSeconds) * time.Second)
	for {
		select {
		case <-sigCh:
			fmt.Println("\n  [*] interrupted, shutting down...")
			shutdown()
			return nil
		case <-deadline:
			shutdown()
			return nil
		case <-ticker.C:
			if dashProgram == nil {
				printStatus(loop)
			}
		}
	}
}

func loadSeeds(sched *corpus.Scheduler, dir string) error {
	if dir == "" {
		sched.AddSeed([]byte{})
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		sched.AddSeed(data)
		loaded++
	}
	if loaded == 0 {
		return fmt.Errorf("no usable seed files in %s", dir)
	}
	return nil
}

func buildRegistry(cfg *config.Config, sched *corpus.Scheduler) *mutator.Registry {
	reg := mutator.NewRegistry()
	reg.Register(mutator.NewBitFlipMutator("bit1"))
	reg.Register(mutator.NewBitFlipMutator("bit2"))
	reg.Register(mutator.NewBitFlipMutator("byte"))
	reg.Register(mutator.NewBitFlipMutator("window2"))
	reg.Register(mutator.NewBitFlipMutator("window4"))
	reg.Register(mutator.NewArithmeticMutator(1, false, true))
	reg.Register(mutator.NewArithmeticMutator(2, false, true))
	reg.Register(mutator.NewArithmeticMutator(4, false, true))

	extras := map[int][][]byte{}
	if cfg.Mutator.InterestingExtrasPath != "" {
		loaded, err := mutator.LoadInterestingExtrasJSON(cfg.Mutator.InterestingExtrasPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  [!] interesting extras: %v\n", err)
		} else {
			extras = loaded
		}
	}
	reg.Register(mutator.NewInterestingValueMutator(1, extras[1]))
	reg.Register(mutator.NewInterestingValueMutator(2, extras[2]))
	reg.Register(mutator.NewInterestingValueMutator(4, extras[4]))

	dict := mutator.NewDictionary()
	if cfg.Mutator.DictPath != "" {
		_ = dict.LoadFile(cfg.Mutator.DictPath)
	}
	reg.Register(mutator.NewDictionaryMutator(dict))
	reg.Register(mutator.NewHavocMutator(dict))
	reg.Register(mutator.NewSpliceMutator(sched))
	return reg
}

func printBanner() {
	fmt.Println()
	fmt.Println("  corefuzz " + version + " - coverage-guided greybox fuzzer")
	fmt.Println()
}

func printStatus(loop *engine.Loop) {
	snap := loop.Monitor().Snapshot()
	sched := loop.Scheduler().Snapshot()
	fmt.Printf("  [%s] execs=%d crashes=%d hangs=%d corpus=%d favored=%d execs/s=%.1f stagnant=%v\n",
		time.Now().Format("15:04:05"), snap.Executions, snap.Crashes, snap.Hangs, sched.Size, sched.FavoredSize, snap.ExecsPerSec, sched.Stagnant)
}

func writeReports(loop *engine.Loop, targetPath, outDir string) {
	snap := loop.Monitor().Snapshot()

	r := report.NewReport("corefuzz run", targetPath)
	r.SetStatistics(report.Statistics{
		Executions:        snap.Executions,
		Crashes:           snap.Crashes,
		Hangs:             snap.Hangs,
		Errors:            snap.Errors,
		InterestingInputs: snap.InterestingInputs,
		AvgExecTime:       time.Duration(snap.AvgExecTimeNs),
		ExecsPerSec:       snap.ExecsPerSec,
		CoveragePercent:   snap.CoveragePercent,
		Duration:          time.Since(snap.StartTime),
	})

	for _, c := range loop.Clusterer().Clusters() {
		r.AddCrash(report.CrashRecord{
			ID:             c.ID,
			Severity:       report.SeverityCrash,
			Representative: c.Representative,
			Members:        c.Members,
			MemberCount:    len(c.Members),
		})
	}

	reportDir := filepath.Join(outDir, "reports")
	mgr := report.NewManager(reportDir)
	if _, err := mgr.GenerateAll(r); err != nil {
		fmt.Fprintf(os.Stderr, "  [!] failed to write reports: %v\n", err)
	}

	if err := os.MkdirAll(reportDir, 0o755); err == nil {
		f, err := os.Create(filepath.Join(reportDir, "coverage_curve.csv"))
		if err == nil {
			defer f.Close()
			if err := report.WriteCoverageCurve(f, loop.Monitor().Samples()); err != nil {
				fmt.Fprintf(os.Stderr, "  [!] failed to write coverage curve: %v\n", err)
			}
		}
	}

	if err := loop.Monitor().ExportRecords(filepath.Join(outDir, "monitor_records.json")); err != nil {
		fmt.Fprintf(os.Stderr, "  [!] failed to export monitor records: %v\n", err)
	}
}

func printSummary(loop *engine.Loop) {
	snap := loop.Monitor().Snapshot()
	fmt.Println()
	fmt.Println("  [*] run complete")
	fmt.Printf("      executions:        %d\n", snap.Executions)
	fmt.Printf("      crashes:           %d\n", snap.Crashes)
	fmt.Printf("      hangs:             %d\n", snap.Hangs)
	fmt.Printf("      interesting:       %d\n", snap.InterestingInputs)
	fmt.Printf("      coverage percent:  %.2f\n", snap.CoveragePercent)
}
