package tool

import (
	"fmt"
	"strings"
)

// ShellToolID identifies the generic shell runner
const ShellToolID = "shell"

// bareInstallCommands are the dependency-install invocations recovery is
// allowed to replace. Anything more specific is left alone.
var bareInstallCommands = map[string]bool{
	"npm install":  true,
	"npm i":        true,
	"pnpm install": true,
	"yarn install": true,
	"yarn":         true,
}

// ShellTool runs any non-empty command text through the platform shell. It
// performs no approval check; callers gate it.
type ShellTool struct {
	findPackaging func(dir string) (Packaging, bool)
}

// NewShellTool creates the shell catch-all
func NewShellTool() *ShellTool {
	return &ShellTool{findPackaging: FindPackaging}
}

func (t *ShellTool) ID() string { return ShellToolID }

func (t *ShellTool) Match(commandText string) (Plan, bool) {
	text := strings.TrimSpace(commandText)
	if text == "" {
		return Plan{}, false
	}
	return Plan{Input: text, Preview: text}, true
}

func (t *ShellTool) Execute(ec ExecContext, plan Plan) Result {
	text, ok := plan.Input.(string)
	if !ok {
		return Result{SpawnErr: fmt.Errorf("unexpected plan input %T", plan.Input)}
	}
	name, args := shellCommand(text)
	return runProcess(ec, name, args)
}

// Recover replaces a failed bare install with either a direct install of the
// already built package artifact or a run of the packaging script.
func (t *ShellTool) Recover(ec ExecContext, plan Plan, res Result) (Recovery, bool) {
	text, _ := plan.Input.(string)
	if !bareInstallCommands[normalizeSpace(text)] {
		return Recovery{}, false
	}

	pkg, ok := t.findPackaging(ec.Dir)
	if !ok {
		return Recovery{}, false
	}

	if pkg.Artifact != "" {
		return Recovery{
			Reason:          fmt.Sprintf("dependency install failed; installing built artifact %s", pkg.Artifact),
			NextCommandText: pkg.InstallCommand(),
		}, true
	}
	return Recovery{
		Reason:          fmt.Sprintf("dependency install failed; rebuilding package in %s", pkg.Dir),
		NextCommandText: pkg.PackageCommand(),
	}, true
}
