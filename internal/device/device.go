package device

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// ClientIDProvider resolves a stable identifier for this installation.
// Batches carry it so sessions from the same machine can be grouped
// during profile building.
type ClientIDProvider struct{}

// NewClientIDProvider creates a new provider
func NewClientIDProvider() *ClientIDProvider {
	return &ClientIDProvider{}
}

// GetOrGenerateClientID returns the configured id when set, otherwise a
// machine-derived id, otherwise a fresh UUID
func (p *ClientIDProvider) GetOrGenerateClientID(existingID string) string {
	if existingID != "" {
		return existingID
	}

	if id := p.machineID(); id != "" {
		return id
	}

	return uuid.New().String()
}

// machineID reads the systemd machine id, falling back to the dbus copy,
// then to the hostname
func (p *ClientIDProvider) machineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			return strings.TrimSpace(string(data))
		}
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return "host-" + hostname
	}

	return ""
}
