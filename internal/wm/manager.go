// Package wm is the composition root: it wires the connection, model,
// interaction machine, compositor, switcher and namespace manager together
// and turns protocol events into manage, focus and decoration work.
package wm

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/tessera/internal/compositor"
	"github.com/1broseidon/tessera/internal/config"
	"github.com/1broseidon/tessera/internal/decor"
	"github.com/1broseidon/tessera/internal/geom"
	"github.com/1broseidon/tessera/internal/hotkeys"
	"github.com/1broseidon/tessera/internal/metrics"
	"github.com/1broseidon/tessera/internal/model"
	"github.com/1broseidon/tessera/internal/namespace"
	"github.com/1broseidon/tessera/internal/switcher"
	"github.com/1broseidon/tessera/internal/theme"
	"github.com/1broseidon/tessera/internal/x11"
)

// Options configures a Manager. Config is required.
type Options struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	// Warner shows namespace warnings on the desktop. It may be nil.
	Warner namespace.Warner
	// Renderer draws titlebars. Nil uses the flat theme from Config.
	Renderer theme.Renderer
}

// Manager owns every subsystem. All of its methods run on the connection's
// event loop except the IPC handlers, which hop onto it.
type Manager struct {
	conn    *x11.Connection
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	metrics *metrics.Metrics

	renderer  theme.Renderer
	ownTheme  bool
	painter   *x11.Painter
	machine   *decor.Machine
	switcher  *switcher.Switcher
	hotkeys   *hotkeys.Handler
	backend   *compositor.XBackend
	comp      *compositor.Compositor
	ns        *namespace.Manager
	violLog   *namespace.ViolationLog
	detection model.Detection

	argbVisual xproto.Visualid
	colormap   xproto.Colormap

	focused xproto.Window
	clients []xproto.Window
	// fixed records clients the theme must draw with close only.
	fixed      map[xproto.Window]bool
	docks      map[xproto.Window]struct{}
	unmanaged  map[xproto.Window]struct{}
	iconified  map[xproto.Window]bool
	pointerOn  bool
	started    time.Time
	stopped    bool
	workArea   geom.Rect
	schedulers bool
}

// New builds a manager on conn. Nothing is sent to the server until Start.
func New(conn *x11.Connection, opts Options) (*Manager, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config

	m := &Manager{
		conn:      conn,
		cfg:       cfg,
		cfgPath:   opts.ConfigPath,
		logger:    logger,
		metrics:   opts.Metrics,
		renderer:  opts.Renderer,
		painter:   conn.NewPainter(),
		detection: model.Detection(cfg.Windows.Detection),
		fixed:     make(map[xproto.Window]bool),
		docks:     make(map[xproto.Window]struct{}),
		unmanaged: make(map[xproto.Window]struct{}),
		iconified: make(map[xproto.Window]bool),
	}
	if m.renderer == nil {
		palette, err := theme.PaletteFromConfig(cfg.Theme)
		if err != nil {
			return nil, err
		}
		m.renderer = theme.NewFlat(palette)
		m.ownTheme = true
	}

	registry := conn.Registry()
	m.machine = decor.NewMachine(decor.SettingsFromConfig(cfg), registry, m, m, conn, logger.With("component", "decor"))
	m.switcher = switcher.New(registry, m, logger.With("component", "switcher"))
	m.hotkeys = hotkeys.NewHandler(conn.XUtil, m.switcher, cfg.Switcher, logger.With("component", "hotkeys"))

	csettings := compositor.SettingsFromConfig(cfg.Compositor)
	m.backend = compositor.NewXBackend(conn.XUtil, csettings, cfg.Compositor.Background)
	m.comp = compositor.New(m.backend, csettings, logger.With("component", "compositor"), m.metrics)

	nsOpts := namespace.Options{
		Config:   cfg.Namespace,
		Prober:   namespace.NewXServer(conn.XUtil),
		Reader:   namespace.NewXServer(conn.XUtil),
		Resolver: m,
		Warner:   opts.Warner,
		Logger:   logger.With("component", "namespace"),
	}
	if path, err := config.NamespaceStorePath(); err == nil {
		nsOpts.Store = namespace.NewStore(path)
	} else {
		logger.Warn("namespace store unavailable", "error", err)
	}
	if cfg.Namespace.ViolationLog != "" {
		vl, err := namespace.OpenViolationLog(namespace.LogConfig{
			Path:      config.ExpandPath(cfg.Namespace.ViolationLog),
			MaxSizeMB: cfg.Namespace.ViolationLogMaxMB,
			MaxFiles:  cfg.Namespace.ViolationLogMaxFiles,
		}, logger.With("component", "violations"))
		if err != nil {
			logger.Warn("violation log disabled", "error", err)
		} else {
			m.violLog = vl
			nsOpts.Sink = vl
		}
	}
	m.ns = namespace.NewManager(nsOpts)
	return m, nil
}

// Start becomes the window manager, brings up every subsystem and adopts
// the windows already on screen. Only the manager selection is fatal.
func (m *Manager) Start() error {
	if err := m.conn.RegisterAsWindowManager(m.conn.Screen); err != nil {
		return fmt.Errorf("failed to become window manager: %w", err)
	}
	m.started = time.Now()
	m.conn.PublishDesktop()
	m.conn.SetRootCursor()

	if err := m.ns.Init(); err != nil {
		m.logger.Warn("namespace init failed", "error", err)
	}
	if m.cfg.Compositor.Enabled {
		m.startCompositor()
	}
	if err := m.hotkeys.Register(); err != nil {
		m.logger.Warn("switcher keys unavailable", "error", err)
	}

	m.conn.AddListener(m.ns)
	m.conn.AddListener(m)
	m.ns.AddListener(m)
	if m.metrics != nil {
		m.ns.AddListener(m.metrics)
	}

	m.scan()
	m.updateWorkArea()
	m.metrics.SetNamespaces(len(m.ns.Namespaces()))
	m.schedule()
	m.logger.Info("window manager started",
		"managed", len(m.clients),
		"compositing", m.comp.Active(),
		"namespaces", m.ns.Available(),
		"detection", string(m.detection))
	return nil
}

func (m *Manager) schedule() {
	if m.schedulers {
		return
	}
	m.schedulers = true
	m.conn.Every(m.cfg.Theme.ResyncInterval, m.resyncTheme)
	if m.comp.Active() {
		m.conn.Every(max(m.cfg.Compositor.MinInterval, time.Millisecond), m.composite)
	}
}

func (m *Manager) startCompositor() {
	if err := m.comp.Start(); err != nil {
		m.logger.Warn("compositor start failed", "error", err)
	}
	if !m.comp.Active() {
		return
	}
	if err := m.conn.AcquireCompositeSelection(m.conn.Screen); err != nil {
		m.logger.Warn("failed to acquire compositing selection", "error", err)
	}
	visual := m.backend.ARGBVisual()
	conn := m.conn.XUtil.Conn()
	cmap, err := xproto.NewColormapId(conn)
	if err == nil {
		err = xproto.CreateColormapChecked(conn, xproto.ColormapAllocNone, cmap, m.conn.Root, visual).Check()
	}
	if err != nil {
		m.logger.Warn("ARGB colormap unavailable; frames use the root visual", "error", err)
		return
	}
	m.argbVisual = visual
	m.colormap = cmap
}

func (m *Manager) composite() {
	if m.comp.CompositeScreen() {
		m.conn.MarkDirty()
	}
}

// Stop releases every client back to the root and tears the subsystems
// down. It is safe to call more than once.
func (m *Manager) Stop() {
	if m.stopped {
		return
	}
	m.stopped = true
	m.machine.Cancel()
	m.hotkeys.Abort()
	if m.pointerOn {
		m.conn.UngrabPointer()
		m.pointerOn = false
	}
	for _, f := range m.conn.Registry().Frames() {
		m.unmanage(f, releaseShutdown)
	}
	m.comp.Stop()
	if m.violLog != nil {
		if err := m.violLog.Close(); err != nil {
			m.logger.Warn("failed to close violation log", "error", err)
		}
	}
	m.conn.MarkDirty()
	m.conn.Flush()
	m.logger.Info("window manager stopped")
}

// NamespaceManager exposes the namespace manager.
func (m *Manager) NamespaceManager() *namespace.Manager { return m.ns }

// ClientFor resolves frame and titlebar ids to the client they wrap.
func (m *Manager) ClientFor(win xproto.Window) xproto.Window {
	if f, ok := m.conn.Registry().FrameFor(win); ok {
		return f.Client().ID
	}
	return win
}

// Reload rereads the config file and applies what can change at runtime:
// interaction tunables, the theme palette, compositor effects and the
// namespace toggles.
func (m *Manager) Reload() error {
	var cfg *config.Config
	if m.cfgPath != "" {
		res, err := config.LoadFromPath(m.cfgPath)
		if err != nil {
			return err
		}
		cfg = res.Config
	} else {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
	}
	if m.ownTheme {
		palette, err := theme.PaletteFromConfig(cfg.Theme)
		if err != nil {
			return err
		}
		m.renderer = theme.NewFlat(palette)
	}
	m.machine.SetSettings(decor.SettingsFromConfig(cfg))
	m.comp.SetSettings(compositor.SettingsFromConfig(cfg.Compositor))
	if cfg.Compositor.MinInterval != m.cfg.Compositor.MinInterval {
		m.logger.Info("compositor tick period applies after restart",
			"min_interval", cfg.Compositor.MinInterval)
	}
	if cfg.Titlebar.Height != m.cfg.Titlebar.Height {
		m.logger.Info("titlebar height change applies to newly managed windows", "height", cfg.Titlebar.Height)
	}
	m.ns.SetVisualIndicators(cfg.Namespace.VisualIndicators)
	m.ns.SetSecurityWarnings(cfg.Namespace.SecurityWarnings)
	m.ns.SetCrossNamespaceBlocking(cfg.Namespace.CrossNamespaceBlocking)
	if cfg.Windows.Detection != m.cfg.Windows.Detection {
		m.logger.Info("detection change applies to newly mapped windows", "detection", cfg.Windows.Detection)
	}
	m.detection = model.Detection(cfg.Windows.Detection)
	m.cfg = cfg
	m.invalidateAll()
	m.resyncTheme()
	m.logger.Info("config reloaded")
	return nil
}
