// Package main provides the entry point for the VPN Core session
// manager, a command-line controller for multi-protocol VPN sessions.
//
// Features:
//   - OpenVPN and IKEv2 sessions driven through a privileged helper
//   - Secure credential storage using the system keyring
//   - Server directory integration with an on-disk cache
//   - Live traffic statistics published by the packet-processing side
//
// Usage:
//
//	vpn-core [options]
//
// Environment:
//
//	Tunnel operations require the privileged helper to be installed and
//	approved. Development machines can substitute it with -fake-host.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecarrera/vpn-core/cli"
	"github.com/ecarrera/vpn-core/common"
	"github.com/ecarrera/vpn-core/config"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

var (
	showVersion = flag.Bool("version", false, "Show version and exit")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showHelp    = flag.Bool("help", false, "Show help message")

	listServers   = flag.Bool("list-servers", false, "List available servers")
	connectServer = flag.String("connect", "", "Connect to a server by directory ID")
	protocolName  = flag.String("protocol", "openvpn", "Protocol to use with -connect")
	disconnect    = flag.Bool("disconnect", false, "Disconnect the active session")
	showStatus    = flag.Bool("status", false, "Show current session status")
	showStats     = flag.Bool("stats", false, "Show traffic counters of the active session")
	useFakeHost   = flag.Bool("fake-host", false, "Use an in-process tunnel host (development)")
)

func main() {
	flag.Parse()

	if *showHelp {
		cli.PrintHelp()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load configuration: %v\n", err)
		cfg = config.DefaultConfig()
	}

	logLevel := common.LevelInfo
	if *verbose || cfg.Verbose {
		logLevel = common.LevelDebug
	}
	if err := common.InitLogger(common.LogConfig{
		Level:      logLevel,
		EnableFile: cfg.LogToFile,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	if !*listServers && *connectServer == "" && !*disconnect && !*showStatus && !*showStats {
		cli.PrintHelp()
		os.Exit(2)
	}

	app, err := cli.New(cfg, *useFakeHost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	var runErr error
	switch {
	case *listServers:
		runErr = app.ListServers(ctx)
	case *connectServer != "":
		runErr = app.Connect(ctx, *connectServer, *protocolName)
	case *disconnect:
		runErr = app.Disconnect(ctx)
	case *showStatus:
		runErr = app.Status()
	case *showStats:
		runErr = app.Stats()
	}

	app.Close()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

// setupSignalHandler cancels the context on SIGINT/SIGTERM so a pending
// connect can abort cleanly.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, shutting down...", sig)
		cancel()
	}()
}
