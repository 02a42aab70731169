// redispool is a command-line companion for the redispool library.
//
// It runs one-shot commands against a Redis-compatible store through the
// managed connection pool, measures pooled round-trip throughput, and can
// hold the pool open while exposing its metrics in Prometheus format.
//
// Usage:
//
//	redispool [flags] <command> [args]
//	redispool [flags] bench [-n ops] [-c workers] [-rate hz]
//	redispool [flags] serve
//	redispool [flags] tui
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "~/.redispool/config.toml")
//	-addr string
//	    Store address (overrides config)
//	-password string
//	    Store password (overrides config)
//	-db int
//	    Store database index (overrides config)
//	-max-clients int
//	    Pool size (overrides config)
//	-acquire-timeout duration
//	    How long commands wait for a pooled connection, 0 waits forever
//	-metrics string
//	    Metrics listen address for serve (overrides config)
//	-v
//	    Enable verbose library logging
//	-version
//	    Print version and exit
//
// See https://github.com/go-i2p/redispool for more information.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/go-i2p/redispool/lib/client"
	"github.com/go-i2p/redispool/lib/config"
	"github.com/go-i2p/redispool/lib/metrics"
	"github.com/go-i2p/redispool/lib/ratelimit"
	"github.com/go-i2p/redispool/lib/tui"
	"github.com/go-i2p/redispool/lib/web"
	"github.com/go-i2p/redispool/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Determine default config path
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	defaultConfigPath := filepath.Join(homeDir, ".redispool", "config.toml")

	// Parse command-line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	addr := flag.String("addr", "", "Store address (overrides config)")
	password := flag.String("password", "", "Store password (overrides config)")
	db := flag.Int("db", -1, "Store database index (overrides config)")
	maxClients := flag.Int("max-clients", 0, "Pool size (overrides config)")
	acquireTimeout := flag.Duration("acquire-timeout", -1, "How long commands wait for a pooled connection, 0 waits forever")
	metricsListen := flag.String("metrics", "", "Metrics listen address for serve (overrides config)")
	verbose := flag.Bool("v", false, "Enable verbose library logging")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = usage
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("redispool version %s\n", version.Full())
		return 0
	}

	// The library logger reads its level from the environment.
	if *verbose {
		os.Setenv("DEBUG_I2P", "debug")
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return 2
	}

	// Start with the config file, then apply CLI overrides
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.Store.Addr = *addr
	}
	if *password != "" {
		cfg.Store.Password = *password
	}
	if *db >= 0 {
		cfg.Store.DB = *db
	}
	if *maxClients > 0 {
		cfg.Pool.MaxClients = *maxClients
	}
	if *acquireTimeout >= 0 {
		cfg.Pool.AcquireTimeout = *acquireTimeout
	}
	if *metricsListen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = *metricsListen
	}

	c := client.New("cli", cfg.ClientOptions()...)

	openCtx, openCancel := context.WithTimeout(context.Background(), cfg.Store.ConnectTimeout+5*time.Second)
	err = c.Open(openCtx)
	openCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach store at %s: %v\n", cfg.Store.Addr, err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: shutdown: %v\n", err)
		}
	}()

	ctx := context.Background()
	command, cmdArgs := args[0], args[1:]

	switch command {
	case "ping":
		return cmdPing(ctx, c)
	case "get":
		return cmdGet(ctx, c, cmdArgs)
	case "set":
		return cmdSet(ctx, c, cmdArgs)
	case "del":
		return cmdDel(ctx, c, cmdArgs)
	case "incr":
		return cmdIncr(ctx, c, cmdArgs)
	case "ttl":
		return cmdTTL(ctx, c, cmdArgs)
	case "expire":
		return cmdExpire(ctx, c, cmdArgs)
	case "keys":
		return cmdKeys(ctx, c, cmdArgs)
	case "hget":
		return cmdHGet(ctx, c, cmdArgs)
	case "hset":
		return cmdHSet(ctx, c, cmdArgs)
	case "hgetall":
		return cmdHGetAll(ctx, c, cmdArgs)
	case "hdel":
		return cmdHDel(ctx, c, cmdArgs)
	case "lpush", "rpush":
		return cmdPush(ctx, c, command, cmdArgs)
	case "blpop", "brpop":
		return cmdBlockingPop(ctx, c, command, cmdArgs)
	case "do":
		return cmdDo(ctx, c, cmdArgs)
	case "stats":
		return cmdStats(ctx, c)
	case "bench":
		return cmdBench(ctx, c, cmdArgs)
	case "serve":
		return cmdServe(c, cfg)
	case "tui":
		return cmdTUI(c)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		flag.Usage()
		return 2
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "redispool - pooled client for Redis-compatible stores\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  redispool [flags] <command> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  ping                     Check that the store answers\n")
	fmt.Fprintf(os.Stderr, "  get KEY                  Print the value stored at KEY\n")
	fmt.Fprintf(os.Stderr, "  set KEY VALUE [TTL]      Store VALUE at KEY, optionally expiring after TTL seconds\n")
	fmt.Fprintf(os.Stderr, "  del KEY [KEY...]         Delete keys, printing how many existed\n")
	fmt.Fprintf(os.Stderr, "  incr KEY                 Increment the counter at KEY\n")
	fmt.Fprintf(os.Stderr, "  ttl KEY                  Print the remaining lifetime of KEY in seconds\n")
	fmt.Fprintf(os.Stderr, "  expire KEY SECONDS       Set the lifetime of KEY\n")
	fmt.Fprintf(os.Stderr, "  keys PATTERN             List keys matching a glob pattern\n")
	fmt.Fprintf(os.Stderr, "  hget KEY FIELD           Print one hash field\n")
	fmt.Fprintf(os.Stderr, "  hset KEY FIELD VALUE     Set one hash field\n")
	fmt.Fprintf(os.Stderr, "  hgetall KEY              Print every field of a hash\n")
	fmt.Fprintf(os.Stderr, "  hdel KEY FIELD [...]     Delete hash fields\n")
	fmt.Fprintf(os.Stderr, "  lpush KEY VALUE          Prepend to a list, printing the new length\n")
	fmt.Fprintf(os.Stderr, "  rpush KEY VALUE          Append to a list, printing the new length\n")
	fmt.Fprintf(os.Stderr, "  blpop KEY                Pop the head of a list, waiting until one arrives\n")
	fmt.Fprintf(os.Stderr, "  brpop KEY                Pop the tail of a list, waiting until one arrives\n")
	fmt.Fprintf(os.Stderr, "  do COMMAND [ARG...]      Send a raw command and print the reply\n")
	fmt.Fprintf(os.Stderr, "  stats                    Print pool statistics\n")
	fmt.Fprintf(os.Stderr, "  bench [-n N] [-c C] [-rate R]  Measure pooled round-trip throughput\n")
	fmt.Fprintf(os.Stderr, "  serve                    Hold the pool open and serve the status pages\n")
	fmt.Fprintf(os.Stderr, "  tui                      Watch the pool in a terminal dashboard\n")
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flag.PrintDefaults()
}

func cmdPing(ctx context.Context, c *client.Client) int {
	start := time.Now()
	if err := c.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("PONG (%s)\n", time.Since(start).Round(time.Microsecond))
	return 0
}

func cmdGet(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: redispool get KEY")
		return 2
	}
	v, err := c.Get(ctx, args[0])
	if errors.Is(err, client.ErrNil) {
		fmt.Println("(nil)")
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(v)
	return 0
}

func cmdSet(ctx context.Context, c *client.Client, args []string) int {
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(os.Stderr, "Usage: redispool set KEY VALUE [TTL]")
		return 2
	}
	ttl := 0
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 {
			fmt.Fprintf(os.Stderr, "Error: bad TTL %q\n", args[2])
			return 2
		}
		ttl = n
	}
	if err := c.Set(ctx, args[0], args[1], ttl); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println("OK")
	return 0
}

func cmdDel(ctx context.Context, c *client.Client, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: redispool del KEY [KEY...]")
		return 2
	}
	n, err := c.Del(ctx, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(n)
	return 0
}

func cmdIncr(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: redispool incr KEY")
		return 2
	}
	n, err := c.Incr(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(n)
	return 0
}

func cmdTTL(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: redispool ttl KEY")
		return 2
	}
	n, err := c.TTL(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(n)
	return 0
}

func cmdExpire(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: redispool expire KEY SECONDS")
		return 2
	}
	secs, err := strconv.Atoi(args[1])
	if err != nil || secs < 0 {
		fmt.Fprintf(os.Stderr, "Error: bad SECONDS %q\n", args[1])
		return 2
	}
	ok, err := c.Expire(ctx, args[0], secs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if ok {
		fmt.Println(1)
	} else {
		fmt.Println(0)
	}
	return 0
}

func cmdKeys(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: redispool keys PATTERN")
		return 2
	}
	keys, err := c.Keys(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return 0
}

func cmdHGet(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: redispool hget KEY FIELD")
		return 2
	}
	v, err := c.HGet(ctx, args[0], args[1])
	if errors.Is(err, client.ErrNil) {
		fmt.Println("(nil)")
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(v)
	return 0
}

func cmdHSet(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: redispool hset KEY FIELD VALUE")
		return 2
	}
	created, err := c.HSet(ctx, args[0], args[1], args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if created {
		fmt.Println(1)
	} else {
		fmt.Println(0)
	}
	return 0
}

func cmdHGetAll(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: redispool hgetall KEY")
		return 2
	}
	m, err := c.HGetAll(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Printf("%s: %s\n", f, m[f])
	}
	return 0
}

func cmdHDel(ctx context.Context, c *client.Client, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: redispool hdel KEY FIELD [FIELD...]")
		return 2
	}
	n, err := c.HDel(ctx, args[0], args[1:]...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(n)
	return 0
}

func cmdPush(ctx context.Context, c *client.Client, command string, args []string) int {
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: redispool %s KEY VALUE\n", command)
		return 2
	}
	push := c.LPush
	if command == "rpush" {
		push = c.RPush
	}
	n, err := push(ctx, args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(n)
	return 0
}

func cmdBlockingPop(ctx context.Context, c *client.Client, command string, args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: redispool %s KEY\n", command)
		return 2
	}
	pop := c.BLPop
	if command == "brpop" {
		pop = c.BRPop
	}
	v, err := pop(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(v)
	return 0
}

func cmdDo(ctx context.Context, c *client.Client, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: redispool do COMMAND [ARG...]")
		return 2
	}
	cmdArgs := make([]interface{}, len(args)-1)
	for i, a := range args[1:] {
		cmdArgs[i] = a
	}
	reply, err := c.Do(ctx, args[0], cmdArgs...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Print(formatReply(reply))
	return 0
}

// formatReply renders a raw reply roughly the way redis-cli does.
func formatReply(reply interface{}) string {
	switch v := reply.(type) {
	case nil:
		return "(nil)\n"
	case []byte:
		return string(v) + "\n"
	case string:
		return v + "\n"
	case int64:
		return fmt.Sprintf("(integer) %d\n", v)
	case []interface{}:
		if len(v) == 0 {
			return "(empty array)\n"
		}
		var b strings.Builder
		for i, item := range v {
			b.WriteString(fmt.Sprintf("%d) ", i+1))
			b.WriteString(formatReply(item))
		}
		return b.String()
	default:
		return fmt.Sprintf("%v\n", v)
	}
}

func cmdStats(ctx context.Context, c *client.Client) int {
	if err := c.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	s := c.Stats()
	fmt.Printf("State:           %s\n", s.State)
	fmt.Printf("Connections:     %d open / %d max (%d idle, %d in use)\n",
		s.NumOpen, s.MaxSize, s.NumIdle, s.NumInUse)
	fmt.Printf("Acquires:        %d total, %d ok, %d failed\n",
		s.AcquireCount, s.AcquireSuccess, s.AcquireFailed)
	fmt.Printf("Releases:        %d\n", s.ReleaseCount)
	fmt.Printf("Health failures: %d\n", s.HealthCheckFails)
	return 0
}

// benchKeyspace bounds how many distinct keys the benchmark touches.
const benchKeyspace = 1000

func cmdBench(ctx context.Context, c *client.Client, args []string) int {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	ops := fs.Int("n", 1000, "Total set+get round trips")
	workers := fs.Int("c", 4, "Concurrent workers")
	rate := fs.Float64("rate", 0, "Maximum round trips per second, 0 for unlimited")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *ops < 1 || *workers < 1 {
		fmt.Fprintln(os.Stderr, "Error: -n and -c must be at least 1")
		return 2
	}
	var pace *ratelimit.Limiter
	if *rate > 0 {
		pace = ratelimit.New(*rate, *workers)
	}

	var done, failed int64
	var wg sync.WaitGroup
	start := time.Now()

	base := *ops / *workers
	extra := *ops % *workers
	for w := 0; w < *workers; w++ {
		n := base
		if w < extra {
			n++
		}
		if n == 0 {
			continue
		}
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				if pace != nil {
					if err := pace.Wait(ctx); err != nil {
						return
					}
				}
				key := fmt.Sprintf("bench:%d", i%benchKeyspace)
				if err := c.Set(ctx, key, "x", 60); err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				if _, err := c.Get(ctx, key); err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&done, 1)
			}
		}(n)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// Leave no benchmark keys behind
	span := *ops
	if span > benchKeyspace {
		span = benchKeyspace
	}
	keys := make([]string, span)
	for i := range keys {
		keys[i] = fmt.Sprintf("bench:%d", i)
	}
	if _, err := c.Del(ctx, keys...); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cleanup: %v\n", err)
	}

	perSec := float64(done*2) / elapsed.Seconds()
	fmt.Printf("%d round trips in %s (%.0f commands/sec), %d failed\n",
		done, elapsed.Round(time.Millisecond), perSec, failed)
	s := c.Stats()
	fmt.Printf("pool: %d/%d connections open, %d acquires, %d failed acquires\n",
		s.NumOpen, s.MaxSize, s.AcquireCount, s.AcquireFailed)
	if failed > 0 {
		return 1
	}
	return 0
}

func cmdServe(c *client.Client, cfg *config.Config) int {
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !cfg.Metrics.Enabled {
		fmt.Fprintln(os.Stderr, "Error: metrics are disabled; pass -metrics or enable them in the config file")
		return 2
	}

	metrics.RecordStartTime()

	server, err := web.New(web.Config{ListenAddr: cfg.Metrics.Listen}, c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: status server: %v\n", err)
		return 1
	}

	fmt.Printf("status pages on http://%s/ (store %s, pool size %d)\n",
		cfg.Metrics.Listen, cfg.Store.Addr, cfg.Pool.MaxClients)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	fmt.Printf("received %s, shutting down\n", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: status server shutdown: %v\n", err)
	}
	return 0
}

func cmdTUI(c *client.Client) int {
	if err := c.Ping(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	app := tui.New(c, tui.Config{RefreshInterval: 2 * time.Second})
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return 1
	}
	return 0
}
