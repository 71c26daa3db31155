package tool

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PackagingDirs are the places, relative to the working directory, searched
// for a package.json with a "package" script. The root comes first.
var PackagingDirs = []string{".", "extension", "packages/extension", "vscode-extension"}

// Artifact kinds
const (
	ArtifactVSIX = ".vsix"
	ArtifactTGZ  = ".tgz"
)

// Packaging describes a discovered packaging script
type Packaging struct {
	// Dir is slash-separated and relative to the working directory ("." for root)
	Dir     string
	Name    string
	Version string
	// Artifact is the relative path of an already built package, empty when
	// none exists yet.
	Artifact string
}

type packageManifest struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Scripts map[string]string `json:"scripts"`
}

// FindPackaging returns the first directory under dir whose package.json has
// a "package" script. ok is false when there is none.
func FindPackaging(dir string) (Packaging, bool) {
	for _, sub := range PackagingDirs {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(sub), "package.json"))
		if err != nil {
			continue
		}

		var manifest packageManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			continue
		}
		if _, ok := manifest.Scripts["package"]; !ok {
			continue
		}

		pkg := Packaging{Dir: sub, Name: manifest.Name, Version: manifest.Version}
		if manifest.Name != "" && manifest.Version != "" {
			pkg.Artifact = findArtifact(dir, sub, artifactBase(manifest.Name, manifest.Version))
		}
		return pkg, true
	}
	return Packaging{}, false
}

// artifactBase mirrors how npm pack names scoped packages: @scope/name -> scope-name
func artifactBase(name, version string) string {
	name = strings.TrimPrefix(name, "@")
	name = strings.ReplaceAll(name, "/", "-")
	return name + "-" + version
}

func findArtifact(dir, sub, base string) string {
	for _, ext := range []string{ArtifactVSIX, ArtifactTGZ} {
		rel := path.Join(sub, base+ext)
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		if err == nil && info.Mode().IsRegular() {
			return rel
		}
	}
	return ""
}

// InstallCommand returns the command that installs the built artifact
func (p Packaging) InstallCommand() string {
	if strings.HasSuffix(p.Artifact, ArtifactVSIX) {
		return "code --install-extension " + quoteArg(p.Artifact)
	}
	return "npm install " + quoteArg(p.Artifact)
}

// PackageCommand returns the command that runs the packaging script
func (p Packaging) PackageCommand() string {
	if p.Dir == "." || p.Dir == "" {
		return "npm run package"
	}
	return "cd " + quoteArg(p.Dir) + " && npm run package"
}
