package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/engine"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/lifecycle"
	"github.com/san-kum/rigidsim/internal/metrics"
	"github.com/san-kum/rigidsim/internal/scene"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile     string
	preset         string
	frames         int
	dt             float64
	collisionSteps int
	subSteps       int
	bodies         int
	seed           int64
	threads        int
	logLevel       string
	plot           bool
	metricsAddr    string
	runs           int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "rigidsim",
		Short:        "rigid body simulation core",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "preset as kind/name, e.g. pile/small")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "run a scene headless and print a summary",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addStepFlags(runCmd)
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot kinetic energy over time")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	benchCmd := &cobra.Command{
		Use:   "bench [scene]",
		Short: "benchmark step throughput across body counts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchScene,
	}
	addStepFlags(benchCmd)
	benchCmd.Flags().IntVar(&runs, "runs", 1, "parallel drivers per row")

	liveCmd := &cobra.Command{
		Use:   "live [scene]",
		Short: "run a scene with a live terminal view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addStepFlags(liveCmd)

	layersCmd := &cobra.Command{
		Use:   "layers",
		Short: "print the collision layer tables",
		RunE:  printLayers,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [scene]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := config.Kinds()
			if len(args) > 0 {
				kinds = args
			}
			for _, kind := range kinds {
				names := config.ListPresets(kind)
				if len(names) == 0 {
					fmt.Printf("no presets for scene: %s\n", kind)
					continue
				}
				fmt.Printf("presets for %s:\n", kind)
				for _, p := range names {
					fmt.Printf("  %s/%s\n", kind, p)
				}
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective config as yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			out, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
	addStepFlags(configCmd)

	rootCmd.AddCommand(runCmd, benchCmd, liveCmd, layersCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStepFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames to simulate")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "frame time step")
	cmd.Flags().IntVar(&collisionSteps, "collision-steps", config.DefaultCollisionSteps, "collision steps per frame")
	cmd.Flags().IntVar(&subSteps, "substeps", config.DefaultSubSteps, "integration sub-steps per collision step")
	cmd.Flags().IntVar(&bodies, "bodies", 0, "dynamic bodies in the scene")
	cmd.Flags().Int64Var(&seed, "seed", 0, "scene random seed")
	cmd.Flags().IntVar(&threads, "threads", -1, "worker threads (-1 for one per cpu)")
}

// loadConfig layers the preset, then the config file, then explicit flags.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		kind, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be kind/name, got %q", preset)
		}
		cfg = config.GetPreset(kind, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(kind))
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if len(args) > 0 {
		cfg.Scene.Kind = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("frames") {
		cfg.Frames = frames
	}
	if flags.Changed("dt") {
		cfg.Step.Dt = dt
	}
	if flags.Changed("collision-steps") {
		cfg.Step.CollisionSteps = collisionSteps
	}
	if flags.Changed("substeps") {
		cfg.Step.IntegrationSubSteps = subSteps
	}
	if flags.Changed("bodies") {
		cfg.Scene.Bodies = bodies
	}
	if flags.Changed("seed") {
		cfg.Scene.Seed = seed
	}
	if flags.Changed("threads") {
		cfg.Jobs.Threads = threads
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}

// session owns a started lifecycle and one driver with its scene.
type session struct {
	lc     *lifecycle.Context
	driver *sim.Driver
	scene  *scene.Scene
}

func openSession(cfg *config.Config, logger *zap.Logger, opts ...sim.Option) (*session, error) {
	lc := lifecycle.New(lifecycle.WithLogger(logger))
	if err := lc.Start(); err != nil {
		return nil, err
	}
	opts = append([]sim.Option{sim.WithLogger(logger)}, opts...)
	d, err := sim.New(lc, *cfg, opts...)
	if err != nil {
		_ = lc.Shutdown()
		return nil, err
	}
	sc, err := scene.Build(d.System(), cfg.Scene)
	if err != nil {
		d.Close()
		_ = lc.Shutdown()
		return nil, err
	}
	return &session{lc: lc, driver: d, scene: sc}, nil
}

func (s *session) Close() error {
	return errors.Join(s.driver.Close(), s.lc.Shutdown())
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	collector := metrics.NewCollector("")
	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	s, err := openSession(cfg, logger, sim.WithMetrics(collector))
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := s.driver.Simulate(ctx, cfg.Frames, sim.ParamsFrom(cfg), metrics.Defaults()...)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("scene: %s\n", s.scene.Kind)
	fmt.Printf("bodies: %d (%d static)\n", s.scene.Count(), len(s.scene.Static))
	fmt.Printf("workers: %d\n\n", s.driver.Workers())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FRAMES\tELAPSED\tFRAMES/SEC\tSCRATCH\tERRORS")
	fmt.Fprintf(w, "%d\t%v\t%.0f\t%dB\t%s\n",
		result.Frames,
		result.Elapsed.Round(time.Microsecond),
		float64(result.Frames)/max(result.Elapsed.Seconds(), 1e-9),
		s.driver.ScratchHighWater(),
		result.Errors)
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.4f\n", name, result.Metrics[name])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if plot && len(result.Energy) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(result.Energy,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("kinetic energy"),
		))
	}
	return nil
}

func benchScene(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if base.Scene.Kind == "" || base.Scene.Kind == scene.KindEmpty {
		base.Scene.Kind = scene.KindPile
	}

	lc := lifecycle.New()
	if err := lc.Start(); err != nil {
		return err
	}
	defer lc.Shutdown()

	counts := []int{10, 50, 100, 250, 500}
	if cmd.Flags().Changed("bodies") {
		counts = []int{base.Scene.Bodies}
	}

	fmt.Printf("benchmarking %s, %d frames x %d runs\n\n", base.Scene.Kind, base.Frames, runs)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BODIES\tFRAMES\tTIME\tFRAMES/SEC\tCONTACTS\tERRORS")

	var throughput []float64
	for _, n := range counts {
		cfg := *base
		cfg.Scene.Bodies = n
		if cfg.Physics.MaxBodies < n+8 {
			cfg.Physics.MaxBodies = n + 8
		}

		ensemble := sim.NewEnsemble(lc, cfg, max(runs, 1))
		start := time.Now()
		results, err := ensemble.Run(cmd.Context(), func(d *sim.Driver, seed int64) error {
			sc := cfg.Scene
			sc.Seed = seed
			_, err := scene.Build(d.System(), sc)
			return err
		}, nil)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		total := 0
		var contacts int
		var errs engine.UpdateError
		for _, r := range results {
			total += r.Frames
			if len(r.Contacts) > 0 {
				contacts = max(contacts, r.Contacts[len(r.Contacts)-1])
			}
			errs |= r.Errors
		}
		fps := float64(total) / max(elapsed.Seconds(), 1e-9)
		throughput = append(throughput, fps)

		fmt.Fprintf(w, "%d\t%d\t%v\t%.0f\t%d\t%s\n",
			n, total, elapsed.Round(time.Millisecond), fps, contacts, errs)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(throughput) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(throughput,
			asciigraph.Height(8),
			asciigraph.Caption("frames/sec by body count"),
		))
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.Scene.Kind == "" {
		cfg.Scene.Kind = scene.KindPile
	}
	limit := 0
	if cmd.Flags().Changed("frames") {
		limit = cfg.Frames
	}

	// Logging would draw over the alternate screen.
	s, err := openSession(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer s.Close()

	return tui.Run(tui.New(s.driver, s.scene, sim.ParamsFrom(cfg), limit))
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	yesStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	noStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	cellStyle   = lipgloss.NewStyle().Width(14)
)

func printLayers(cmd *cobra.Command, args []string) error {
	policy := layers.NewTwoLayerPolicy(nil)
	if err := layers.Validate(policy); err != nil {
		return err
	}

	objs := make([]layers.ObjectLayer, policy.NumObjectLayers())
	for i := range objs {
		objs[i] = layers.ObjectLayer(i)
	}
	bps := make([]layers.BroadPhaseLayer, policy.NumBroadPhaseLayers())
	for i := range bps {
		bps[i] = layers.BroadPhaseLayer(i)
	}

	mark := func(ok bool) string {
		if ok {
			return cellStyle.Render(yesStyle.Render("yes"))
		}
		return cellStyle.Render(noStyle.Render("no"))
	}

	fmt.Println(headerStyle.Render("broad-phase mapping"))
	for _, o := range objs {
		bp, _ := policy.BroadPhaseLayer(o)
		name, _ := policy.BroadPhaseLayerName(bp)
		fmt.Printf("  %s -> %s\n", cellStyle.Render(o.String()), name)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("object vs object"))
	row := []string{cellStyle.Render("")}
	for _, o := range objs {
		row = append(row, cellStyle.Render(o.String()))
	}
	fmt.Println("  " + lipgloss.JoinHorizontal(lipgloss.Top, row...))
	for _, a := range objs {
		row = []string{cellStyle.Render(a.String())}
		for _, b := range objs {
			row = append(row, mark(policy.ShouldCollide(a, b)))
		}
		fmt.Println("  " + lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("object vs broad-phase"))
	row = []string{cellStyle.Render("")}
	for _, bp := range bps {
		name, _ := policy.BroadPhaseLayerName(bp)
		row = append(row, cellStyle.Render(name))
	}
	fmt.Println("  " + lipgloss.JoinHorizontal(lipgloss.Top, row...))
	for _, o := range objs {
		row = []string{cellStyle.Render(o.String())}
		for _, bp := range bps {
			row = append(row, mark(policy.ShouldCollideBroadPhase(o, bp)))
		}
		fmt.Println("  " + lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return nil
}
