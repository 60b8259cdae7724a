//go:build darwin || freebsd || linux

package proxy

import (
	"github.com/techiew/UltimateProxyDLL/internal/locate"
	"github.com/techiew/UltimateProxyDLL/internal/resolve"
)

// New builds a proxy wired to the platform loader.
func New() *Proxy {
	return NewWith(locate.New(), resolve.New())
}
