// Package manifest inspects a project's dependency descriptor to decide
// how its development server should be started.
package manifest

import (
	"encoding/json"
)

// AppType identifies the detected application framework.
type AppType string

const (
	AppTypeVite    AppType = "vite"
	AppTypeNext    AppType = "next"
	AppTypeCRA     AppType = "create-react-app"
	AppTypeAstro   AppType = "astro"
	AppTypeSvelte  AppType = "svelte"
	AppTypeGeneric AppType = "generic"
)

// ManifestPath is the dependency descriptor the detector looks for.
const ManifestPath = "package.json"

// Detection holds the result of inspecting a project's files.
type Detection struct {
	Type        AppType
	HasManifest bool

	// DevCommand is the argv for starting the development server.
	DevCommand []string

	// Port is the port the dev server is expected to bind.
	Port int
}

// packageManifest is the slice of package.json the detector reads.
type packageManifest struct {
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// frameworkRule maps a dependency keyword to a start command and port.
// Order matters: the first matching rule wins, so more specific frameworks
// come first (a Next app also depends on react).
var frameworkRules = []struct {
	keyword string
	apptype AppType
	command []string
	port    int
}{
	{"next", AppTypeNext, []string{"npm", "run", "dev"}, 3000},
	{"astro", AppTypeAstro, []string{"npm", "run", "dev"}, 4321},
	{"@sveltejs/kit", AppTypeSvelte, []string{"npm", "run", "dev"}, 5173},
	{"react-scripts", AppTypeCRA, []string{"npm", "start"}, 3000},
	{"vite", AppTypeVite, []string{"npm", "run", "dev"}, 5173},
}

// Detect inspects files for a manifest and picks the dev-server command.
// Projects without a manifest, or with no recognizable framework, fall back
// to a generic `npm run dev` on defaultPort.
func Detect(files map[string]string, defaultPort int) Detection {
	generic := Detection{
		Type:       AppTypeGeneric,
		DevCommand: []string{"npm", "run", "dev"},
		Port:       defaultPort,
	}

	raw, ok := files[ManifestPath]
	if !ok {
		return generic
	}
	generic.HasManifest = true

	var m packageManifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		// A present but unparseable manifest still gets an install attempt;
		// detection just cannot improve on the generic command.
		return generic
	}

	deps := make(map[string]bool, len(m.Dependencies)+len(m.DevDependencies))
	for name := range m.Dependencies {
		deps[name] = true
	}
	for name := range m.DevDependencies {
		deps[name] = true
	}

	for _, rule := range frameworkRules {
		if deps[rule.keyword] {
			return Detection{
				Type:        rule.apptype,
				HasManifest: true,
				DevCommand:  rule.command,
				Port:        rule.port,
			}
		}
	}

	return generic
}
