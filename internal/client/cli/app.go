package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/config"
	"github.com/dmitrijs2005/offlinekit/internal/client/export"
	"github.com/dmitrijs2005/offlinekit/internal/client/flags"
	"github.com/dmitrijs2005/offlinekit/internal/client/merge"
	"github.com/dmitrijs2005/offlinekit/internal/client/netwatch"
	"github.com/dmitrijs2005/offlinekit/internal/client/remote"
	"github.com/dmitrijs2005/offlinekit/internal/client/security"
	"github.com/dmitrijs2005/offlinekit/internal/client/services"
	"github.com/dmitrijs2005/offlinekit/internal/client/session"
	"github.com/dmitrijs2005/offlinekit/internal/client/store"
	"github.com/dmitrijs2005/offlinekit/internal/client/syncqueue"
	"github.com/dmitrijs2005/offlinekit/internal/logging"
	"github.com/dmitrijs2005/offlinekit/internal/netx"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// App holds the wired data layer behind the interactive shell.
type App struct {
	config *config.Config
	log    logging.Logger

	store   *store.Store
	tokens  *session.FileProvider
	watcher *netwatch.Watcher
	prober  io.Closer
	sec     *security.Service
	queue   *syncqueue.Queue
	data    services.DataService
	flags   *flags.FileStore
	sink    export.Sink

	mu   sync.Mutex
	Mode Mode

	reader *bufio.Reader
	out    io.Writer
	now    func() time.Time
}

// NewApp opens the local store and wires the data layer described by c.
// With the device key source and PromptPassphrase set, the passphrase is
// read from the terminal here.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	log = logging.OrNop(log)
	a := &App{
		config: c,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		now:    time.Now,
		Mode:   ModeOffline,
	}

	policy, err := merge.ByName(c.MergePolicy)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, c.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	a.store = st

	a.tokens = session.NewFileProvider(c.TokenFile)
	a.flags = flags.NewFileStore(c.FlagsFile)

	switch c.Probe {
	case config.ProbeNone:
		a.watcher = netwatch.NewManual(true)
	case config.ProbeGRPC:
		p := &netwatch.GRPCHealthProber{Target: c.ProbeTarget}
		a.prober = p
		a.watcher = netwatch.NewWatcher(p, log)
	default:
		a.watcher = netwatch.NewWatcher(&netwatch.HTTPProber{URL: c.ProbeURL()}, log)
	}

	var passphrase []byte
	if c.KeySource == config.KeySourceDevice && c.PromptPassphrase {
		if passphrase, err = getPassword(a.out, "Device passphrase"); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	a.sec, err = security.NewService(st, a.tokens, security.Options{
		KeySource:        security.KeySource(c.KeySource),
		KDFIterations:    c.KDFIterations,
		DeviceSecretFile: c.DeviceSecretFile,
		DevicePassphrase: passphrase,
		AllowedRoles:     c.AllowedRoles,
		ClientAgent:      c.ClientAgent,
		Status:           a.watcher,
	}, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	api := netx.NewClient(c.BaseURL, a.tokens, c.ReplayTimeout, c.ClientAgent)
	a.queue = syncqueue.NewQueue(st, syncqueue.NewHTTPTransport(api), a.sec, syncqueue.Options{
		DefaultMaxRetries: c.DefaultMaxRetries,
		DefaultRetryDelay: c.DefaultRetryDelay,
		HistorySize:       c.HistorySize,
		DrainInterval:     c.DrainInterval,
	}, log)

	a.data = services.NewDataService(st, a.sec, a.queue, remote.NewHTTPSource(api), services.Options{
		Merge:        policy,
		StaleAfter:   c.StaleAfter,
		LogRetention: c.LogRetention,
		Flags:        a.flags,
	}, log)

	a.sink = export.FileSink{Dir: c.ExportDir}
	if c.S3.Bucket != "" {
		s3sink, err := export.NewS3Sink(ctx, export.S3Config{
			Region:    c.S3.Region,
			Endpoint:  c.S3.Endpoint,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
			Bucket:    c.S3.Bucket,
			Prefix:    c.S3.Prefix,
		})
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("s3 export sink: %w", err)
		}
		a.sink = s3sink
	}

	a.watcher.Subscribe(a.onStatusChange)
	if a.watcher.Online() {
		a.setMode(ModeOnline)
	}
	return a, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()
	if changed {
		a.log.Info(context.Background(), "connectivity changed", "mode", string(mode))
		fmt.Fprintf(a.out, "Switched to %s mode\n", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

// onStatusChange keeps the mode and the advisory flags in step with the
// watcher.
func (a *App) onStatusChange(online bool) {
	ctx := context.Background()
	if online {
		a.setMode(ModeOnline)
		if err := a.flags.Clear(flags.KeyOfflineSince); err != nil {
			a.log.Warn(ctx, "failed to clear offline flag", "error", err.Error())
		}
		if err := a.flags.Set(flags.KeyLastFlushAttempt, a.now()); err != nil {
			a.log.Warn(ctx, "failed to record flush attempt", "error", err.Error())
		}
		return
	}
	a.setMode(ModeOffline)
	if _, err := a.flags.SetIfAbsent(flags.KeyOfflineSince, a.now()); err != nil {
		a.log.Warn(ctx, "failed to set offline flag", "error", err.Error())
	}
}

// StartBackground runs the connectivity watcher and the queue's drain loop
// until ctx is done. The returned wait blocks until both loops have returned,
// including any drain pass that was in flight when ctx ended.
func (a *App) StartBackground(ctx context.Context) (wait func()) {
	var g errgroup.Group
	if a.config.Probe != config.ProbeNone {
		g.Go(func() error {
			a.watcher.Run(ctx, netwatch.TickerScheduler{}, a.config.OnlineCheckInterval)
			return nil
		})
	}
	g.Go(func() error {
		a.queue.Run(ctx, a.watcher, netwatch.TickerScheduler{})
		return nil
	})
	return func() { _ = g.Wait() }
}

// Run starts the background loops and the REPL; it blocks until the user
// exits or stdin closes. On return the loops are stopped and waited for
// before the store is closed.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(a.out, "Welcome to offlinekit (type 'help' for commands)")
	if n, err := a.data.CleanupSecurityLogs(ctx); err != nil {
		a.log.Warn(ctx, "security log cleanup failed", "error", err.Error())
	} else if n > 0 {
		a.log.Info(ctx, "security logs purged", "count", n)
	}

	wait := a.StartBackground(ctx)
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))

	cancel()
	wait()
	a.Close()
}

func (a *App) Close() {
	if a.prober != nil {
		_ = a.prober.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn(context.Background(), "closing store", "error", err.Error())
		}
	}
}

func (a *App) isLoggedIn() bool {
	_, err := a.sec.CurrentClaims(context.Background())
	return err == nil
}

func (a *App) getStatus() string {
	parts := make([]string, 0, 2)
	if c, err := a.sec.CurrentClaims(context.Background()); err == nil && c.UserID != "" {
		parts = append(parts, c.UserID)
	}
	if m := a.mode(); m != "" {
		parts = append(parts, string(m))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// userArg returns args[0], or the signed-in user when no argument is given.
func (a *App) userArg(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	c, err := a.sec.CurrentClaims(ctx)
	if err != nil {
		if errors.Is(err, security.ErrNoCredential) {
			return "", errors.New("not logged in; pass a user id or run 'login'")
		}
		return "", err
	}
	return c.UserID, nil
}
