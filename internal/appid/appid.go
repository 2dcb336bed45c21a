// Package appid describes the loggate application identity used for help
// text, config discovery, environment prefixes and telemetry namespaces.
package appid

import (
	"context"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
)

const (
	BinaryName  = "loggate"
	ConfigName  = "loggate"
	EnvPrefix   = "LOGGATE_"
	Description = "Rate-limited diagnostic logging gateway"
)

// Get returns the application identity. An identity file named by
// FULMEN_APP_IDENTITY_PATH stays authoritative; otherwise the built-in
// identity is used.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	if strings.TrimSpace(os.Getenv(appidentity.EnvIdentityPath)) != "" {
		return appidentity.Get(ctx)
	}
	return Builtin(), nil
}

// Builtin returns the compiled-in identity.
func Builtin() *appidentity.Identity {
	return &appidentity.Identity{
		BinaryName:  BinaryName,
		ConfigName:  ConfigName,
		EnvPrefix:   EnvPrefix,
		Description: Description,
	}
}
