package config

import (
	"sort"
	"time"

	"github.com/muurk/nxqos/internal/nxapi"
)

// Registry represents the entire user configuration file.
// This stores the switch inventory and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by user-chosen device name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents one managed switch in the inventory.
// This is keyed by its user-chosen name in the Registry.
type Device struct {
	Host      string   `yaml:"host"`                 // Management address (IP or DNS name)
	Port      int      `yaml:"port,omitempty"`       // NX-API port (defaults to 443)
	Username  string   `yaml:"username,omitempty"`   // Overrides the preferences default
	VerifyTLS bool     `yaml:"verify_tls,omitempty"` // Certificate verification (off for lab gear)
	Tags      []string `yaml:"tags,omitempty"`       // Free-form grouping labels (e.g. "core", "lab")

	LastDeploy time.Time `yaml:"last_deploy,omitempty"` // Time of the last committed deployment
	LastPolicy string    `yaml:"last_policy,omitempty"` // Name of the last committed policy
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultUsername  string `yaml:"default_username,omitempty"` // Used when a device has no username
	FleetConcurrency int    `yaml:"fleet_concurrency"`          // Parallel device limit for fleet deploys
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			DefaultUsername:  "admin",
			FleetConcurrency: 4,
		},
	}
}

// GetDevice retrieves a device by name.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// SetDevice adds or replaces a device entry.
func (r *Registry) SetDevice(name string, device *Device) {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	r.Devices[name] = device
}

// RemoveDevice deletes a device entry, reporting whether it existed.
func (r *Registry) RemoveDevice(name string) bool {
	if _, ok := r.Devices[name]; !ok {
		return false
	}
	delete(r.Devices, name)
	return true
}

// Names returns the device names in sorted order for stable listings.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DevicesByTag returns the names of every device carrying the tag, sorted.
// An empty tag selects every device.
func (r *Registry) DevicesByTag(tag string) []string {
	var names []string
	for name, device := range r.Devices {
		if tag == "" || device.HasTag(tag) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RecordDeployment stamps a device with its last committed deployment.
func (r *Registry) RecordDeployment(name, policyName string) {
	device := r.GetDevice(name)
	if device == nil {
		return
	}
	device.LastDeploy = time.Now()
	device.LastPolicy = policyName
}

// HasTag reports whether the device carries the tag.
func (d *Device) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// EffectiveUsername resolves the device username against the preferences
// default.
func (d *Device) EffectiveUsername(prefs *Preferences) string {
	if d.Username != "" {
		return d.Username
	}
	if prefs != nil && prefs.DefaultUsername != "" {
		return prefs.DefaultUsername
	}
	return "admin"
}

// ClientConfig builds the connection parameters for this device. The
// password comes from the caller because it is never stored on disk.
func (d *Device) ClientConfig(username, password string) nxapi.Config {
	return nxapi.Config{
		Host:      d.Host,
		Port:      d.Port,
		Username:  username,
		Password:  password,
		VerifyTLS: d.VerifyTLS,
	}
}
