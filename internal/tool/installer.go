package tool

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/iambrandonn/actuator/internal/fsutil"
	"github.com/iambrandonn/actuator/internal/protocol"
)

// ArtifactInstallerID identifies the package-artifact installer
const ArtifactInstallerID = "artifact-install"

// installInput is the plan input of the artifact installer
type installInput struct {
	Executable string
	Args       []string
	Artifact   string
}

// ArtifactInstaller installs a built package artifact: an npm tarball or an
// editor extension bundle. It never goes through a shell.
type ArtifactInstaller struct {
	lookPath func(string) (string, error)
}

// NewArtifactInstaller creates the installer tool
func NewArtifactInstaller() *ArtifactInstaller {
	return &ArtifactInstaller{lookPath: exec.LookPath}
}

func (t *ArtifactInstaller) ID() string { return ArtifactInstallerID }

// Match accepts "npm install|i <file>.tgz" and "code --install-extension <file>.vsix"
func (t *ArtifactInstaller) Match(commandText string) (Plan, bool) {
	if hasShellMeta(commandText) {
		return Plan{}, false
	}
	tokens, err := tokenize(commandText)
	if err != nil || len(tokens) != 3 {
		return Plan{}, false
	}

	exe, verb, artifact := tokens[0], tokens[1], tokens[2]
	switch {
	case exe == "npm" && (verb == "install" || verb == "i") && strings.HasSuffix(artifact, ArtifactTGZ):
	case exe == "code" && verb == "--install-extension" && strings.HasSuffix(artifact, ArtifactVSIX):
	default:
		return Plan{}, false
	}

	return Plan{
		Input:   installInput{Executable: exe, Args: []string{verb, artifact}, Artifact: artifact},
		Preview: fmt.Sprintf("install %s with %s", artifact, exe),
	}, true
}

// Preflight requires the executable on PATH and the artifact inside the
// working directory. The artifact argument is rewritten to its resolved path.
func (t *ArtifactInstaller) Preflight(ec ExecContext, plan Plan) PreflightResult {
	in, ok := plan.Input.(installInput)
	if !ok {
		return preflightFailure(CodePreflightFailed, fmt.Sprintf("unexpected plan input %T", plan.Input))
	}

	if _, err := t.lookPath(in.Executable); err != nil {
		return preflightFailure(CodeExecutableAbsent, fmt.Sprintf("%s not found on PATH: %v", in.Executable, err))
	}

	resolved, err := fsutil.ResolveWorkspacePath(ec.Dir, in.Artifact)
	if err != nil {
		return preflightFailure(CodeArtifactAbsent, fmt.Sprintf("artifact %s: %v", in.Artifact, err))
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return preflightFailure(CodeArtifactAbsent, fmt.Sprintf("artifact %s does not exist", in.Artifact))
	}

	in.Args = []string{in.Args[0], resolved}
	in.Artifact = resolved
	return PreflightResult{OK: true, Input: in}
}

func (t *ArtifactInstaller) Execute(ec ExecContext, plan Plan) Result {
	in, ok := plan.Input.(installInput)
	if !ok {
		return Result{SpawnErr: fmt.Errorf("unexpected plan input %T", plan.Input)}
	}
	return runProcess(ec, in.Executable, in.Args)
}

func preflightFailure(code, message string) PreflightResult {
	return PreflightResult{Diagnostics: []protocol.Diagnostic{{Code: code, Message: message}}}
}
