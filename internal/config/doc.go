// Package config provides user configuration management for the nxqos tooling.
//
// This package manages a YAML-based configuration file that stores the switch
// inventory (named devices with their management addresses) and application
// preferences. The configuration follows OS-specific conventions for storage
// location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/nxqos/config.yaml or $HOME/.config/nxqos/config.yaml
//   - macOS: $HOME/.config/nxqos/config.yaml
//   - Windows: %LOCALAPPDATA%\nxqos\config.yaml
//
// # Security
//
// IMPORTANT: This package NEVER stores device passwords. Credentials are
// always prompted from the user (or read from the environment) when needed.
//
// # Usage Example
//
//	// Load the global registry
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Add or update a switch
//	registry.SetDevice("lab-leaf1", &config.Device{
//	    Host: "192.168.1.100",
//	    Tags: []string{"lab"},
//	})
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
