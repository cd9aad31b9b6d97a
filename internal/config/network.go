package config

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/sweeney/hoist/internal/status"
)

// PiHelperEnv is where pi-helper writes the host's network state.
const PiHelperEnv = "/run/pi-helper.env"

// pi-helper env var names.
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// ReadNetworkInfo reads network state from the env file at path, falling
// back to the process environment when the file is unreadable. The file is
// re-read on every call since pi-helper rewrites it as the network changes.
// Returns nil when no status is known.
func ReadNetworkInfo(path string) *status.NetworkInfo {
	get := os.Getenv
	if env, err := godotenv.Read(path); err == nil {
		get = func(k string) string { return env[k] }
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}
