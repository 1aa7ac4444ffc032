// Package main provides the entry point for the narrate CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/internal/loader"
	"github.com/dgnsrekt/narrate/internal/metrics"
	"github.com/dgnsrekt/narrate/internal/playlist"
	"github.com/dgnsrekt/narrate/internal/remote"
	"github.com/dgnsrekt/narrate/internal/store"
	"github.com/dgnsrekt/narrate/player"
	"github.com/dgnsrekt/narrate/player/audio"
	playersync "github.com/dgnsrekt/narrate/player/sync"
	"github.com/dgnsrekt/narrate/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	watch      bool
	paused     bool
	start      int
	mockAudio  bool
	remoteAddr string
	debug      bool
	headless   bool

	rootCmd = &cobra.Command{
		Use:   "narrate [PLAYLIST|DIR]",
		Short: "Play narrated documents segment by segment",
		Long: paragraph(
			fmt.Sprintf("\nPlay a narrated document %s, one audio segment after another.\nSOURCE is an M3U playlist or a directory of .mp3 / .mp3.zst segments.", keyword("in order")),
		),
		Example:          paragraph("narrate chapter.m3u\nnarrate --watch ./segments\nnarrate --headless --remote 127.0.0.1:7420 book.m3u8"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"m3u", "m3u8"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		path, err := homedir.Expand(configFile)
		if err != nil {
			return fmt.Errorf("unable to expand config path: %w", err)
		}
		configFile = path
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	debug = viper.GetBool("debug")
	headless = viper.GetBool("headless")

	if cmd.Flags().Changed("paused") {
		viper.Set("playback.auto_play", !paused)
	}
	if mockAudio {
		viper.Set("audio.backend", player.BackendMock)
	}
	if start < 0 {
		return fmt.Errorf("--start must be non-negative, got %d", start)
	}

	// The TUI needs a terminal.
	if !headless && !term.IsTerminal(int(os.Stdout.Fd())) {
		log.Debug("Stdout is not a terminal, running headless")
		headless = true
	}
	return nil
}

// openDocument turns a playlist file or segment directory into a document.
// dir is set for directory documents so the loader can watch it.
func openDocument(arg string, watching bool) (doc store.Document, dir string, err error) {
	if arg == "" {
		arg = "."
	}
	path, err := homedir.Expand(arg)
	if err != nil {
		return doc, "", fmt.Errorf("unable to expand path: %w", err)
	}
	if path, err = filepath.Abs(path); err != nil {
		return doc, "", fmt.Errorf("unable to get absolute path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return doc, "", fmt.Errorf("unable to open source: %w", err)
	}

	var pl *playlist.Playlist
	if info.IsDir() {
		if pl, err = playlist.ScanDir(path); err != nil {
			return doc, "", err
		}
		// A watched directory keeps growing.
		pl.Complete = !watching
		dir = path
	} else {
		if !playlist.IsPlaylistFile(path) {
			return doc, "", fmt.Errorf("%s is not a playlist", filepath.Base(path))
		}
		if pl, err = playlist.ParseFile(path); err != nil {
			return doc, "", err
		}
	}

	if len(pl.Entries) == 0 && !watching {
		return doc, "", playlist.ErrEmptyPlaylist
	}
	return pl.Document(), dir, nil
}

func newCacheManager(cfg player.Config, logger *log.Logger) (*cache.Manager, error) {
	cc := cache.DefaultConfig()
	cc.MemoryCapacity = int64(cfg.CacheSizeMB) * 1024 * 1024

	if viper.GetBool("cache.disk") {
		dir, err := gap.NewScope(gap.User, "narrate").CacheDir()
		if err != nil {
			return nil, fmt.Errorf("unable to find cache directory: %w", err)
		}
		cc.DiskPath = filepath.Join(dir, "pcm")
		cc.DiskCapacity = cc.MemoryCapacity * 4
	}
	return cache.NewManager(cc, logger)
}

func execute(cmd *cobra.Command, args []string) error {
	if headless {
		logToStderr()
	}
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.Default()

	cfg, err := player.LoadConfigFromViper()
	if err != nil {
		return err
	}

	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	doc, dir, err := openDocument(arg, cfg.Watch)
	if err != nil {
		return err
	}
	log.Debug("Opened document", "title", doc.Title, "tracks", len(doc.Tracks), "complete", doc.Complete)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pcm, err := newCacheManager(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = pcm.Close() }()

	factory, backend, err := audio.NewContextFactory(audio.FactoryOptions{
		Backend: cfg.Backend,
		Production: audio.ProductionOptions{
			SampleRate:   cfg.SampleRate,
			Volume:       cfg.Volume,
			FutureBuffer: cfg.FutureBuffer,
			Cache:        pcm,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	log.Info("Audio backend selected", "backend", backend)

	st := store.New(store.WithWrap(cfg.WrapNavigation), store.WithLogger(logger))
	st.Load(doc)
	if start > 0 {
		st.GoToPosition(start)
	}

	m := metrics.New()
	notifier := ui.NewNotifier()
	notify := notifier.Notify
	if headless {
		notify = logMessage
	}

	synchronizer := playersync.New(st, audio.NewBuilder(factory, logger),
		playersync.WithLogger(logger),
		playersync.WithRecorder(m),
		playersync.WithNotify(notify),
		playersync.WithStallTimeout(cfg.StallTimeout),
	)
	if err := synchronizer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = synchronizer.Stop() }()

	ld, err := loader.New(st, doc, loader.Options{Watch: cfg.Watch, Dir: dir, Logger: logger})
	if err != nil {
		return err
	}
	go func() {
		if err := ld.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Loader stopped", "error", err)
		}
	}()

	if cfg.RemoteAddr != "" {
		srv := remote.NewServer(st,
			remote.WithMetrics(m),
			remote.WithLogger(logger),
			remote.WithStop(synchronizer.ClearAudio),
		)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.RemoteAddr); err != nil {
				log.Error("Remote control stopped", "error", err)
				cancel()
			}
		}()
	}

	if cfg.AutoPlay {
		st.Play()
	}

	if headless {
		return runHeadless(ctx, st, ld)
	}
	return runTUI(dirOrArg(dir, arg), cfg, st, synchronizer, notifier)
}

func dirOrArg(dir, arg string) string {
	if dir != "" {
		return dir
	}
	return arg
}

func runTUI(path string, pcfg player.Config, st *store.Store, synchronizer *playersync.Synchronizer, n *ui.Notifier) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.Path = path
	cfg.Visualizer = pcfg.Visualizer

	unsubscribe := st.Subscribe(n.StoreChanged)
	defer unsubscribe()
	unsubscribeSets := synchronizer.Holder().Subscribe(n.SetChanged)
	defer unsubscribeSets()

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, st, synchronizer, n).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadDotEnv()
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep watching for segment files that appear later")
	rootCmd.Flags().BoolVarP(&paused, "paused", "p", false, "open the document without starting playback")
	rootCmd.Flags().IntVarP(&start, "start", "s", 0, "segment index to start at")
	rootCmd.Flags().BoolVar(&mockAudio, "mock-audio", false, "use the silent mock audio backend")
	rootCmd.Flags().StringVarP(&remoteAddr, "remote", "r", "", "serve the HTTP remote control on this address")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "run without the TUI, logging to stderr")

	// Config bindings
	_ = viper.BindPFlag("playback.watch", rootCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("remote.addr", rootCmd.Flags().Lookup("remote"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("headless", rootCmd.Flags().Lookup("headless"))

	player.SetDefaults()
	viper.SetDefault("cache.disk", false)

	rootCmd.AddCommand(configCmd, manCmd)
}

// tryLoadDotEnv reads a .env file from the working directory, if any.
func tryLoadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Could not parse .env file", "err", err)
	}
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "narrate")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "narrate")}, dirs...)
	}

	if c := os.Getenv("NARRATE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("narrate")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("narrate")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "narrate.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
