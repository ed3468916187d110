// Package common provides shared constants, types, and utilities
// used across the VPN Core session manager.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.ecarrera.vpncore"
	// AppName is the display name of the application.
	AppName = "VPN Core"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "vpn-core"
)

// File names used by the application.
const (
	ConfigFileName        = "config.yaml"
	RegistrationsFileName = "registrations.db"
	ServerCacheFileName   = "servers.json"
	LogFileName           = "vpn-core.log"
)

// Default timeouts and intervals.
const (
	// ConnectTimeout is the maximum time to wait for a tunnel start request.
	ConnectTimeout = 30 * time.Second
	// StatsPublishInterval is how often the packet-processing side
	// publishes byte counters to the shared surface.
	StatsPublishInterval = 3 * time.Second
	// StatsStaleThreshold is the age after which a published statistics
	// sample is reported as stale.
	StatsStaleThreshold = 10 * time.Second
	// DirectoryTimeout is the timeout for server directory requests.
	DirectoryTimeout = 15 * time.Second
)

// DefaultAccessScope is the access-group boundary shared with the
// privileged packet-processing process. Both the credential store scope
// and the statistics surface namespace derive from it.
const DefaultAccessScope = "group.vpn-core.shared"

// Credential account-key conventions. The protocol tag is appended to the
// username so the same user can hold independent secrets per protocol.
const (
	AccountSuffixOpenVPN = "-OPENVPN"
	AccountSuffixIKEv2   = "-IKEV2"
	// AccountPrefixPSK scopes IKEv2 pre-shared keys away from
	// password-based entries for the same user.
	AccountPrefixPSK = "psk-"
)
