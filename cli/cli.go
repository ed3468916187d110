// Package cli provides the command-line interface of the VPN Core
// session manager. It wires the directory client, credential store,
// platform host, and session manager together and exposes the
// list/connect/disconnect/status/stats operations used from main.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/ecarrera/vpn-core/common"
	"github.com/ecarrera/vpn-core/config"
	"github.com/ecarrera/vpn-core/directory"
	"github.com/ecarrera/vpn-core/keyring"
	"github.com/ecarrera/vpn-core/platform"
	"github.com/ecarrera/vpn-core/vpn"
)

// CLI bundles the wired application components.
type CLI struct {
	cfg       *config.Config
	manager   *vpn.Manager
	directory *directory.Client
	store     *platform.RegistrationStore
	host      platform.Host
}

// New wires the application. With useFakeHost set an in-process fake
// replaces the privileged D-Bus helper, for development on machines
// without the helper installed.
func New(cfg *config.Config, useFakeHost bool) (*CLI, error) {
	var host platform.Host
	if useFakeHost {
		host = platform.NewFakeHost()
	} else {
		h, err := platform.NewDBusHost()
		if err != nil {
			return nil, fmt.Errorf("could not reach the tunnel helper: %w", err)
		}
		host = h
	}

	dataDir, err := common.GetDataDir()
	if err != nil {
		host.Close()
		return nil, err
	}
	store, err := platform.OpenRegistrationStore(filepath.Join(dataDir, common.RegistrationsFileName))
	if err != nil {
		host.Close()
		return nil, err
	}

	manager, err := vpn.NewManager(cfg, host, store, keyring.New())
	if err != nil {
		store.Close()
		host.Close()
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	dir, err := directory.NewClient(cfg.DirectoryURL)
	if err != nil {
		manager.Close()
		store.Close()
		host.Close()
		return nil, err
	}

	return &CLI{
		cfg:       cfg,
		manager:   manager,
		directory: dir,
		store:     store,
		host:      host,
	}, nil
}

// Close releases the wired components.
func (c *CLI) Close() error {
	c.manager.Close()
	c.store.Close()
	return c.host.Close()
}

// ListServers lists the servers known to the directory.
func (c *CLI) ListServers(ctx context.Context) error {
	servers, err := c.directory.Servers(ctx)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		fmt.Println("No servers available.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOUNTRY\tPROTOCOLS")
	fmt.Fprintln(w, "--\t----\t-------\t---------")
	for _, s := range servers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.CountryCode, strings.Join(s.Protocols, ", "))
	}
	w.Flush()
	return nil
}

// Connect establishes a session to the given server with the given
// protocol. Missing credentials are prompted for on the terminal.
func (c *CLI) Connect(ctx context.Context, serverID, protocolName string) error {
	kind, err := vpn.ParseProtocolKind(protocolName)
	if err != nil {
		return err
	}
	if !kind.Supported() {
		return fmt.Errorf("%w: protocol %s", common.ErrNotImplemented, kind)
	}

	if current, ok := c.manager.CurrentSession(); ok {
		if status, _ := c.manager.Status(); status == vpn.StatusConnected {
			return fmt.Errorf("%w: %s session active, disconnect first", common.ErrAlreadyConnected, current)
		}
	}

	serverCfg, err := c.directory.ServerConfiguration(ctx, serverID, kind)
	if err != nil {
		return err
	}

	if serverCfg.Username == "" || serverCfg.Password == "" {
		username, password, err := promptCredentials(serverCfg.Username)
		if err != nil {
			return err
		}
		serverCfg.Username = username
		serverCfg.Password = password
	}

	fmt.Printf("Connecting to %s (%s)...\n", serverCfg.Name, kind)
	if err := c.manager.Connect(ctx, serverCfg, kind); err != nil {
		if errors.Is(err, common.ErrExtensionNotApproved) {
			return fmt.Errorf("the tunnel helper is not approved; approve it in system settings and retry")
		}
		return fmt.Errorf("connection failed: %w", err)
	}

	return c.waitForStatus(ctx, vpn.StatusConnected, common.ConnectTimeout)
}

// Disconnect tears down the active session. It returns ErrNotConnected
// when no session is active.
func (c *CLI) Disconnect(ctx context.Context) error {
	if _, ok := c.manager.CurrentSession(); !ok {
		return common.ErrNotConnected
	}

	fmt.Println("Disconnecting...")
	if err := c.manager.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return c.waitForStatus(ctx, vpn.StatusDisconnected, common.ConnectTimeout)
}

// waitForStatus polls until the manager settles in the wanted state.
func (c *CLI) waitForStatus(ctx context.Context, want vpn.ConnectionStatus, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			status, message := c.manager.Status()
			return fmt.Errorf("timed out in state %s (%s)", status, message)
		case <-ticker.C:
			status, message := c.manager.Status()
			switch status {
			case want:
				fmt.Printf("✓ %s\n", status)
				return nil
			case vpn.StatusInvalid:
				return fmt.Errorf("session failed: %s", message)
			}
		}
	}
}

// Status shows the current session state.
func (c *CLI) Status() error {
	status, message := c.manager.Status()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROTOCOL\tSTATUS\tDETAIL")
	fmt.Fprintln(w, "--------\t------\t------")

	protocol := "-"
	if kind, ok := c.manager.CurrentSession(); ok {
		protocol = kind.String()
	}
	if message == "" {
		message = "-"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\n", protocol, status, message)
	w.Flush()
	return nil
}

// Stats shows the traffic counters of the active session.
func (c *CLI) Stats() error {
	snap, ok := c.manager.DataCount()
	if !ok {
		fmt.Println("No statistics available.")
		return nil
	}

	observed := snap.ObservedAt.Local().Format(time.RFC3339)
	if snap.Stale {
		observed += " (stale)"
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECEIVED\tSENT\tOBSERVED")
	fmt.Fprintln(w, "--------\t----\t--------")
	fmt.Fprintf(w, "%s\t%s\t%s\n",
		formatBytes(snap.BytesReceived), formatBytes(snap.BytesSent), observed)
	w.Flush()
	return nil
}

// promptCredentials reads the username and password from the terminal.
// The password is read without echo.
func promptCredentials(username string) (string, string, error) {
	if username == "" {
		fmt.Print("Username: ")
		if _, err := fmt.Scanln(&username); err != nil {
			return "", "", fmt.Errorf("could not read username: %w", err)
		}
	}

	fmt.Printf("Password for %s: ", username)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", "", fmt.Errorf("could not read password: %w", err)
	}
	if len(password) == 0 {
		return "", "", fmt.Errorf("empty password")
	}
	return username, string(password), nil
}

// formatBytes formats a byte count in a human-readable unit.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// PrintHelp prints CLI usage help.
func PrintHelp() {
	fmt.Println(`VPN Core - Command Line Interface

Usage:
  vpn-core [OPTIONS]

Options:
  -version            Show version and exit
  -verbose            Enable verbose logging
  -list-servers       List available servers
  -connect ID         Connect to a server by directory ID
  -protocol NAME      Protocol to use with -connect (openvpn, ikev2)
  -disconnect         Disconnect the active session
  -status             Show current session status
  -stats              Show traffic counters of the active session
  -fake-host          Use an in-process tunnel host (development)
  -help               Show this help message`)
}
