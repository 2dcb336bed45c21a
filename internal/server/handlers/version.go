package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"
)

// BuildInfo is injected from main via SetVersionInfo.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var (
	buildMu     sync.RWMutex
	buildInfo   = BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
	appIdentity *appidentity.Identity
)

// SetVersionInfo records the build metadata reported by /version.
func SetVersionInfo(version, commit, buildDate string) {
	buildMu.Lock()
	defer buildMu.Unlock()
	buildInfo = BuildInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// SetAppIdentity sets the app identity for the handler
func SetAppIdentity(identity *appidentity.Identity) {
	buildMu.Lock()
	defer buildMu.Unlock()
	appIdentity = identity
}

// CurrentBuildInfo returns the recorded build metadata.
func CurrentBuildInfo() BuildInfo {
	buildMu.RLock()
	defer buildMu.RUnlock()
	return buildInfo
}

// VersionResponse represents the version information response
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

// AppInfo contains application version details
type AppInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
	Commit      string `json:"git_commit"`
	BuildDate   string `json:"build_date"`
	GoVersion   string `json:"go_version,omitempty"`
}

// DepInfo contains dependency version information
type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

// RuntimeInfo contains runtime environment information
type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler handles version information requests
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	deps := crucible.GetVersion()

	buildMu.RLock()
	info := buildInfo
	identity := appIdentity
	buildMu.RUnlock()

	name, description := "unknown", ""
	if identity != nil {
		name, description = identity.BinaryName, identity.Description
	} else if len(os.Args) > 0 && os.Args[0] != "" {
		name = filepath.Base(os.Args[0])
	}

	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:        name,
			Description: description,
			Version:     info.Version,
			Commit:      info.Commit,
			BuildDate:   info.BuildDate,
			GoVersion:   runtime.Version(),
		},
		Dependencies: DepInfo{
			Gofulmen: deps.Gofulmen,
			Crucible: deps.Crucible,
		},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}
