// Command zkekyc is the device side of the protocol: it enrolls an identity
// with a verifier and re-authenticates with zero-knowledge proofs. The
// long-term secret stays sealed in the state directory.
//
// Usage:
//
//	zkekyc [global flags] enroll -id <number> -name <name> -dob <dd/mm/yyyy> [-approved]
//	zkekyc [global flags] login [-print-token]
//	zkekyc [global flags] status
//	zkekyc [global flags] reset
//
// The keyring passphrase is read from $ZKEKYC_PASSPHRASE unless the config
// names another variable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/allsmog/zkekyc-go/pkg/config"
	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
	"github.com/allsmog/zkekyc-go/pkg/device"
	"github.com/allsmog/zkekyc-go/pkg/logging"
	"github.com/allsmog/zkekyc-go/pkg/storage"
	"github.com/allsmog/zkekyc-go/pkg/transport/httpapi"
	"github.com/allsmog/zkekyc-go/pkg/vault"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type app struct {
	cfg    config.Client
	client *device.Client
	logger *slog.Logger
	stdout io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("zkekyc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "YAML config file (optional)")
		server     = fs.String("server", "", "Verifier base URL")
		stateDir   = fs.String("state-dir", "", "Directory holding the keyring and enrollment")
		curveName  = fs.String("curve", "", "Group ("+strings.Join(curve.SupportedCurves(), "|")+")")
		suite      = fs.String("suite", "", "Cipher suite (aes-256-gcm|xchacha20-poly1305)")
		logLevel   = fs.String("log-level", "", "Log level (debug|info|warn|error)")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: zkekyc [flags] enroll|login|status|reset [command flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "zkekyc: %v\n", err)
		return exitFailure
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.ServerURL = *server
		case "state-dir":
			cfg.StateDir = *stateDir
		case "curve":
			cfg.Curve = *curveName
		case "suite":
			cfg.Suite = *suite
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "zkekyc: invalid configuration: %v\n", err)
		return exitFailure
	}

	logger, err := logging.New(stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(stderr, "zkekyc: %v\n", err)
		return exitFailure
	}

	a := &app{cfg: cfg, logger: logger, stdout: stdout}
	if err := a.init(); err != nil {
		fmt.Fprintf(stderr, "zkekyc: %v\n", err)
		return exitFailure
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "enroll":
		return a.enroll(ctx, cmdArgs, stderr)
	case "login":
		return a.login(ctx, cmdArgs, stderr)
	case "status":
		return a.status(ctx)
	case "reset":
		return a.reset(ctx)
	default:
		fmt.Fprintf(stderr, "zkekyc: unknown command %q\n", cmd)
		fs.Usage()
		return exitUsage
	}
}

func (a *app) init() error {
	passphrase := os.Getenv(a.cfg.PassphraseEnv)
	if passphrase == "" {
		return fmt.Errorf("set $%s to the keyring passphrase", a.cfg.PassphraseEnv)
	}
	crv, err := curve.FromName(a.cfg.Curve)
	if err != nil {
		return err
	}
	suite, err := vault.ParseSuite(a.cfg.Suite)
	if err != nil {
		return err
	}
	api, err := httpapi.New(a.cfg.ServerURL,
		httpapi.WithHTTPClient(&http.Client{Timeout: a.cfg.Timeout}),
		httpapi.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	keys := vault.NewFileKeyring(a.cfg.KeyringPath(), passphrase, suite)
	store := storage.NewFileSecretStore(a.cfg.SecretPath())
	a.client = device.NewClient(crv, vault.New(keys), store, api, device.WithLogger(a.logger))
	return nil
}

func (a *app) enroll(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("enroll", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		id       = fs.String("id", "", "ID document number")
		name     = fs.String("name", "", "Full name as printed on the document")
		dob      = fs.String("dob", "", "Date of birth as printed on the document")
		origin   = fs.String("origin", "", "Place of origin")
		address  = fs.String("address", "", "Residential address")
		phone    = fs.String("phone", "", "Phone number")
		approved = fs.Bool("approved", false, "Liveness check passed")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	req := &device.EnrollmentRequest{
		Facts: device.IdentityFacts{
			IDNumber: *id,
			FullName: *name,
			DOB:      *dob,
			Origin:   *origin,
		},
		PhoneNumber: *phone,
		Address:     *address,
	}
	if *approved {
		req.Approval = 1
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(stderr, "zkekyc: %v\n", err)
		return exitUsage
	}

	_, sub, err := a.client.Enroll(ctx, req)
	switch {
	case errors.Is(err, device.ErrRejected):
		fmt.Fprintf(a.stdout, "enrollment refused: %s\n", sub.Detail)
		return exitFailure
	case err != nil:
		a.logger.Debug("enrollment failed", "error", err)
		fmt.Fprintln(a.stdout, "enrollment failed")
		return exitFailure
	}
	if sub.UserID != nil {
		fmt.Fprintf(a.stdout, "enrolled as user %d\n", *sub.UserID)
	} else {
		fmt.Fprintln(a.stdout, "enrolled")
	}
	return exitOK
}

func (a *app) login(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)
	printToken := fs.Bool("print-token", false, "Print the session token on success")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	sub, attempt, err := a.client.Login(ctx)
	if err != nil {
		a.logger.Debug("re-authentication failed", "state", attempt.State().String(), "error", err)
		if errors.Is(err, device.ErrNotEnrolled) {
			fmt.Fprintln(a.stdout, "not enrolled yet")
		} else {
			fmt.Fprintln(a.stdout, "re-authentication failed")
		}
		return exitFailure
	}

	if sub.UserID != nil {
		fmt.Fprintf(a.stdout, "re-authenticated as user %d\n", *sub.UserID)
	} else {
		fmt.Fprintln(a.stdout, "re-authenticated")
	}
	if *printToken && sub.SessionToken != "" {
		fmt.Fprintln(a.stdout, sub.SessionToken)
	}
	return exitOK
}

func (a *app) status(ctx context.Context) int {
	enrolled, err := a.client.Enrollment().IsEnrolled(ctx)
	if err != nil {
		a.logger.Debug("status check failed", "error", err)
		fmt.Fprintln(a.stdout, "enrollment state unavailable")
		return exitFailure
	}
	if !enrolled {
		fmt.Fprintln(a.stdout, "not enrolled yet")
		return exitOK
	}

	binding, err := a.client.Enrollment().Binding(ctx)
	if err != nil {
		a.logger.Debug("failed to load binding", "error", err)
		fmt.Fprintln(a.stdout, "enrollment state unavailable")
		return exitFailure
	}
	fmt.Fprintln(a.stdout, "enrolled")
	fmt.Fprintf(a.stdout, "  id hash:   %s\n", binding.IDHash)
	fmt.Fprintf(a.stdout, "  name hash: %s\n", binding.NameHash)
	fmt.Fprintf(a.stdout, "  dob hash:  %s\n", binding.DOBHash)
	return exitOK
}

func (a *app) reset(ctx context.Context) int {
	if err := a.client.Enrollment().ClearEnrollment(ctx); err != nil {
		a.logger.Debug("reset failed", "error", err)
		fmt.Fprintln(a.stdout, "reset failed")
		return exitFailure
	}
	fmt.Fprintln(a.stdout, "enrollment cleared")
	return exitOK
}
