package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// DefaultColorDepth is reported when no override is set.
const DefaultColorDepth = 24

// Signals are environment properties readable without special permission.
type Signals struct {
	UserAgent  string `json:"user_agent"`
	Locale     string `json:"locale"`
	ColorDepth int    `json:"color_depth"`
	Resolution string `json:"resolution"`
}

// SignalProvider exposes the current device signals.
type SignalProvider interface {
	Signals() Signals
}

// Fingerprint is a stable, non-secret identifier for a device profile.
type Fingerprint string

// Compute hashes signals into a Fingerprint. Field order is fixed.
func Compute(s Signals) Fingerprint {
	canonical := strings.Join([]string{
		s.UserAgent,
		s.Locale,
		fmt.Sprintf("%d", s.ColorDepth),
		s.Resolution,
	}, "\x1f")

	sum := sha256.Sum256([]byte(canonical))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Short returns an abbreviated form suitable for logs.
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}

// StaticProvider returns fixed signals.
type StaticProvider Signals

// Signals implements SignalProvider.
func (p StaticProvider) Signals() Signals {
	return Signals(p)
}

// HostProvider derives signals from the running process environment.
// Only values that stay the same across terminal sessions are used, so
// window size and terminal type are left out.
type HostProvider struct {
	getenv   func(string) string
	hostname func() (string, error)
}

// NewHostProvider creates a provider reading the real environment.
func NewHostProvider() *HostProvider {
	return &HostProvider{
		getenv:   os.Getenv,
		hostname: os.Hostname,
	}
}

// NewHostProviderWith creates a provider with substituted lookups.
func NewHostProviderWith(getenv func(string) string, hostname func() (string, error)) *HostProvider {
	return &HostProvider{getenv: getenv, hostname: hostname}
}

// Signals implements SignalProvider.
func (p *HostProvider) Signals() Signals {
	host, err := p.hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}

	return Signals{
		UserAgent:  fmt.Sprintf("syncvault (%s; %s; %s)", runtime.GOOS, runtime.GOARCH, host),
		Locale:     p.locale(),
		ColorDepth: p.colorDepth(),
		Resolution: p.resolution(),
	}
}

func (p *HostProvider) locale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := p.getenv(key); v != "" {
			// en_US.UTF-8@euro -> en_US
			if i := strings.IndexAny(v, ".@"); i >= 0 {
				v = v[:i]
			}
			if v == "C" || v == "POSIX" {
				continue
			}
			return strings.ReplaceAll(v, "_", "-")
		}
	}
	return "en-US"
}

// colorDepth is fixed unless overridden. TERM and COLORTERM are not used
// because they change between sessions on the same device.
func (p *HostProvider) colorDepth() int {
	if v := p.getenv("SYNCVAULT_DEVICE_COLOR_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultColorDepth
}

func (p *HostProvider) resolution() string {
	if v := p.getenv("SYNCVAULT_DEVICE_RESOLUTION"); v != "" {
		return v
	}
	return "headless"
}
