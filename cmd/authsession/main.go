// Command authsession keeps an authentication session for a terminal user.
//
// Usage:
//
//	authsession login [-email addr] [-totp-secret s | -code c | -backup-code c]
//	authsession status
//	authsession refresh
//	authsession logout [-all]
//	authsession watch
//
// Settings come from the environment or a .env file (see internal/config).
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/term"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/httpbackend"
	"github.com/MrEthical07/authsession/internal/config"
	"github.com/MrEthical07/authsession/metrics/export/prometheus"
	"github.com/MrEthical07/authsession/storage"
)

const usage = `usage: authsession <command> [flags]

commands:
  login     authenticate and store the session
  status    show the stored session, refreshing it if needed
  refresh   force an access token refresh
  logout    end the session (-all revokes every session of the user)
  watch     keep the session alive until interrupted
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app bundles what every command needs.
type app struct {
	cfg     *config.Config
	manager *authsession.Manager
	stdin   *bufio.Reader
	rawIn   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	closers []func()
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "authsession: %v\n", err)
		return 1
	}
	a, err := newApp(cfg, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "authsession: %v\n", err)
		return 1
	}
	defer a.close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "status":
		return a.status(ctx)
	case "refresh":
		return a.refresh(ctx)
	case "logout":
		return a.logout(ctx, rest)
	case "watch":
		return a.watch(ctx)
	default:
		fmt.Fprintf(stderr, "authsession: unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

func newApp(cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		stdin:  bufio.NewReader(stdin),
		rawIn:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	store, err := a.openStorage()
	if err != nil {
		a.close()
		return nil, err
	}
	backend, err := httpbackend.New(httpbackend.Config{BaseURL: cfg.BaseURL})
	if err != nil {
		a.close()
		return nil, err
	}
	mc, err := cfg.ManagerConfig()
	if err != nil {
		a.close()
		return nil, err
	}
	for _, w := range mc.Lint().AtLeast(authsession.LintWarn) {
		fmt.Fprintf(stderr, "authsession: config %s: %s\n", w.Code, w.Message)
	}

	b := authsession.New().
		WithConfig(mc).
		WithBackend(backend).
		WithStorage(store)
	if cfg.AuditLog {
		b = b.WithAuditSink(authsession.NewJSONWriterSink(stderr))
	}
	m, err := b.Build()
	if err != nil {
		a.close()
		return nil, err
	}
	a.manager = m
	a.closers = append(a.closers, m.Close)

	if cfg.MetricsAddr != "" {
		a.serveMetrics()
	}
	return a, nil
}

func (a *app) openStorage() (storage.Storage, error) {
	switch a.cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemory(), nil
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		a.closers = append(a.closers, func() { _ = client.Close() })
		return storage.NewRedis(client, a.cfg.RedisPrefix, 0)
	default:
		return storage.NewFile(a.cfg.StateDir)
	}
}

func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(a.manager).Handler())
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(a.stderr, "authsession: metrics server: %v\n", err)
		}
	}()
	a.closers = append(a.closers, func() { _ = srv.Close() })
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (a *app) login(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var (
		email      = fs.String("email", "", "account email; prompted when empty")
		totpSecret = fs.String("totp-secret", "", "base32 TOTP secret used to generate the second factor")
		code       = fs.String("code", "", "six-digit TOTP code")
		backupCode = fs.String("backup-code", "", "one-time backup code")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *email == "" {
		v, err := a.prompt("Email: ")
		if err != nil {
			return a.fail(err)
		}
		*email = v
	}
	password, err := a.promptSecret("Password: ")
	if err != nil {
		return a.fail(err)
	}

	res := a.manager.Login(ctx, *email, password)
	if res.Status == authsession.LoginTwoFactorRequired {
		res, err = a.secondFactor(ctx, *totpSecret, *code, *backupCode)
		if err != nil {
			a.manager.Cancel2FA()
			return a.fail(err)
		}
	}
	if !res.OK() {
		fmt.Fprintf(a.stderr, "login failed: %s\n", res.Reason)
		return 1
	}

	a.printState(a.manager.Snapshot())
	return 0
}

func (a *app) secondFactor(ctx context.Context, totpSecret, code, backupCode string) (authsession.LoginResult, error) {
	switch {
	case totpSecret != "":
		generated, err := totp.GenerateCode(strings.ToUpper(strings.TrimSpace(totpSecret)), time.Now())
		if err != nil {
			return authsession.LoginResult{}, fmt.Errorf("generate totp code: %w", err)
		}
		return a.manager.Verify2FA(ctx, generated), nil
	case code != "":
		return a.manager.Verify2FA(ctx, code), nil
	case backupCode != "":
		return a.manager.VerifyBackupCode(ctx, backupCode), nil
	}

	entered, err := a.prompt("Verification code (or backup code): ")
	if err != nil {
		return authsession.LoginResult{}, err
	}
	if isDigits(entered) {
		return a.manager.Verify2FA(ctx, entered), nil
	}
	return a.manager.VerifyBackupCode(ctx, entered), nil
}

func (a *app) status(ctx context.Context) int {
	if !a.manager.Initialize(ctx) {
		fmt.Fprintln(a.stdout, "not logged in")
		return 1
	}
	a.printState(a.manager.Snapshot())
	return 0
}

func (a *app) refresh(ctx context.Context) int {
	if !a.manager.Initialize(ctx) {
		fmt.Fprintln(a.stdout, "not logged in")
		return 1
	}
	if !a.manager.RefreshAccessToken(ctx) {
		fmt.Fprintln(a.stderr, "refresh failed; session ended")
		return 1
	}
	a.printState(a.manager.Snapshot())
	return 0
}

func (a *app) logout(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	all := fs.Bool("all", false, "revoke every session of the user")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	a.manager.Initialize(ctx)
	a.manager.Logout(ctx, *all)
	fmt.Fprintln(a.stdout, "logged out")
	return 0
}

func (a *app) watch(ctx context.Context) int {
	if !a.manager.Initialize(ctx) {
		fmt.Fprintln(a.stdout, "not logged in")
		return 1
	}
	a.printState(a.manager.Snapshot())

	var mu sync.Mutex
	last := stateKey(a.manager.Snapshot())
	unsubscribe := a.manager.Subscribe(func(s authsession.State) {
		if s.IsLoading {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if k := stateKey(s); k != last {
			last = k
			a.printState(s)
		}
	})
	defer unsubscribe()
	if next, ok := a.manager.NextRefresh(); ok {
		fmt.Fprintf(a.stdout, "next refresh at %s\n", next.Local().Format(time.RFC3339))
	}

	<-ctx.Done()
	return 0
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (a *app) printState(s authsession.State) {
	if !s.IsAuthenticated || s.User == nil {
		if s.Error != "" {
			fmt.Fprintf(a.stdout, "not logged in (%s)\n", s.Error)
			return
		}
		fmt.Fprintln(a.stdout, "not logged in")
		return
	}
	fmt.Fprintf(a.stdout, "logged in as %s (id %d, role %s), token expires %s\n",
		s.User.Email, s.User.ID, s.User.Role, s.ExpiresAt.Local().Format(time.RFC3339))
}

// stateKey identifies what watch reports, so repeated notifications for the
// same session stay quiet.
func stateKey(s authsession.State) string {
	if !s.IsAuthenticated || s.User == nil {
		return "out"
	}
	return fmt.Sprintf("%d/%d", s.User.ID, s.ExpiresAt.UnixNano())
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.stderr, label)
	line, err := a.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal.
func (a *app) promptSecret(label string) (string, error) {
	if f, ok := a.rawIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.stderr, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := a.prompt(label)
	if err != nil {
		return "", err
	}
	return line, nil
}

func (a *app) fail(err error) int {
	fmt.Fprintf(a.stderr, "authsession: %v\n", err)
	return 1
}

func isDigits(s string) bool {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
