package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/tunnelcheck/internal/api"
	"github.com/die-net/tunnelcheck/internal/dialer"
	"github.com/die-net/tunnelcheck/internal/logging"
	"github.com/die-net/tunnelcheck/internal/pipeline"
	"github.com/die-net/tunnelcheck/internal/probe"
	"github.com/die-net/tunnelcheck/internal/proxylist"
	"github.com/die-net/tunnelcheck/internal/report"
	"github.com/die-net/tunnelcheck/internal/rlimit"
	"github.com/die-net/tunnelcheck/internal/ssh"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		input       = pflag.String("input", "-", "Proxy list file, one candidate per line ('-' for stdin)")
		kind        = pflag.String("kind", string(pipeline.DefaultKind), "Kind for lines without a scheme: auto | socks4 | socks5 | http | https | ssh | direct")
		dest        = pflag.String("dest", "", "Destination host:port every tunnel is opened to")
		timeout     = pflag.Duration("timeout", pipeline.DefaultTimeout, "Deadline for each candidate, covering connect, handshake, AUTO fallbacks and probe")
		concurrency = pflag.Int("concurrency", pipeline.DefaultConcurrency, "Number of candidates tried at once")
		probeName   = pflag.String("probe", "none", "Liveness probe run over each tunnel: "+strings.Join(probe.Names, " | "))
		output      = pflag.String("output", "", "Write working candidates here, one source line each ('-' for stdout). Empty disables.")
		summaryJSON = pflag.String("summary-json", "", "Write the batch summary as JSON here ('-' for stdout). Empty disables.")

		listen = pflag.String("listen", "", "Serve the HTTP control API on this address (e.g. 127.0.0.1:8787) instead of running one batch")

		via            = pflag.String("via", defaultVia(), "Reach candidates through this upstream proxy URL (e.g. socks5://[user:pass@]host:port). Empty dials directly.")
		httpsTLS       = pflag.Bool("https-tls", false, "Speak TLS to https candidates before CONNECT")
		socks4LocalDNS = pflag.Bool("socks4-local-dns", false, "Resolve hostnames locally for SOCKS4 instead of using SOCKS4a")
		dialTimeout    = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for local DNS lookups")
		sshKeyPath     = pflag.String("ssh-key", defaultSSHKeyPath(), "SSH key source: 'agent' for SSH agent, path to private key file, or empty to disable")
		sshKnownHosts  = pflag.String("ssh-known-hosts", defaultSSHKnownHostsPath(), "Path to known_hosts file for SSH host key verification, or empty to disable")
		tcpKeepAlive   = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		verbose        = pflag.Bool("verbose", false, "Log every result and print failures as well as successes")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	logger := logging.New(os.Stderr, *verbose)
	slog.SetDefault(logger)

	if n, err := rlimit.Raise(); err != nil {
		logger.Warn("could not raise open file limit", "err", err)
	} else if n > 0 {
		logger.Debug("open file limit", "nofile", n)
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	dialCfg := dialer.Config{
		DialTimeout:          *dialTimeout,
		KeepAlive:            ka,
		HTTPSOverTLS:         *httpsTLS,
		SOCKS4ResolveLocally: *socks4LocalDNS,
		SSHKeyPath:           *sshKeyPath,
		SSHKnownHostsPath:    *sshKnownHosts,
	}
	if *via != "" {
		dialCfg.Forward, err = dialer.ForwardFromURL(*via, ka)
		if err != nil {
			return fmt.Errorf("invalid --via: %w", err)
		}
	}

	negotiator, err := dialer.New(dialCfg)
	if err != nil {
		return err
	}
	p := pipeline.New(negotiator, pipeline.WithLogger(logger))

	ctx, abort := context.WithCancel(context.Background())
	defer abort()

	if *listen != "" {
		return serveAPI(ctx, abort, p, *listen, ka, logger)
	}

	k, err := dialer.ParseKind(*kind)
	if err != nil {
		return fmt.Errorf("invalid --kind: %w", err)
	}
	if *dest == "" {
		return errors.New("--dest is required (or use --listen)")
	}
	dst, err := dialer.ParseDestination(*dest)
	if err != nil {
		return fmt.Errorf("invalid --dest: %w", err)
	}
	pr, err := probe.Parse(*probeName)
	if err != nil {
		return fmt.Errorf("invalid --probe: %w", err)
	}
	if *concurrency < 1 {
		return errors.New("invalid --concurrency: must be > 0")
	}

	lines, err := proxylist.ReadFile(*input)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return errors.New("no candidates in input")
	}

	opts := pipeline.Options{
		Concurrency: *concurrency,
		Timeout:     *timeout,
		Probe:       pr,
	}

	var results io.Writer = os.Stdout
	if *output == "-" || *summaryJSON == "-" {
		results = os.Stderr
	}

	stop := onInterrupt(func() {
		logger.Info("cancelling; interrupt again to abort")
		p.Cancel()
	}, abort)
	defer stop()

	logger.Info("batch starting", "candidates", len(lines), "dest", dst.Addr(), "kind", k, "concurrency", opts.Concurrency, "timeout", opts.Timeout)

	sum, err := p.Run(ctx, pipeline.ParseItems(lines, k), dst, opts, report.NewPrinter(results, *verbose))
	if err != nil {
		return err
	}

	if *output != "" {
		if err := report.WriteFile(*output, sum, report.WriteGoodList); err != nil {
			return fmt.Errorf("write --output: %w", err)
		}
	}
	if *summaryJSON != "" {
		if err := report.WriteFile(*summaryJSON, sum, report.WriteSummaryJSON); err != nil {
			return fmt.Errorf("write --summary-json: %w", err)
		}
	}
	return nil
}

func serveAPI(ctx context.Context, abort context.CancelFunc, p *pipeline.Pipeline, addr string, ka net.KeepAliveConfig, logger *slog.Logger) error {
	lc := net.ListenConfig{KeepAliveConfig: ka}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}

	srv := api.NewServer(ctx, p, logger)

	g, ctx := errgroup.WithContext(ctx)
	context.AfterFunc(ctx, func() {
		_ = srv.Close()
		_ = ln.Close()
	})

	stop := onInterrupt(func() {
		logger.Info("shutting down; interrupt again to abort the running batch")
		p.Cancel()
		_ = srv.Close()
	}, abort)
	defer stop()

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil {
			return fmt.Errorf("api serve: %w", err)
		}
		return nil
	})
	logger.Info("api listening", "addr", ln.Addr().String())

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

// onInterrupt calls first on the first SIGINT or SIGTERM and then on every
// later one. The returned func stops watching.
func onInterrupt(first, then func()) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		fired := false
		for {
			select {
			case <-sigs:
				if fired {
					then()
				} else {
					fired = true
					first()
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return net.KeepAliveConfig{}, errors.New("empty")
	case "on":
		return net.KeepAliveConfig{Enable: true}, nil
	case "off":
		return net.KeepAliveConfig{Enable: false}, nil
	}

	idle, intvl, cnt, ok := splitThree(s)
	if !ok {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(idle)
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(intvl)
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(cnt)
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func splitThree(s string) (a, b, c string, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

// defaultVia honors ALL_PROXY so checks can be run from behind an egress
// proxy without extra flags.
func defaultVia() string {
	for _, env := range []string{"ALL_PROXY", "all_proxy"} {
		if p := os.Getenv(env); p != "" {
			return p
		}
	}
	return ""
}

func defaultSSHKnownHostsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

func defaultSSHKeyPath() string {
	if ssh.AgentAvailable() {
		return ssh.AgentKeySource
	}
	return ""
}
