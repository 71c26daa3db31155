package tool

import (
	"fmt"
	"os/exec"
	"strings"
)

// GitToolID identifies the version-control runner
const GitToolID = "git"

// gitVerbs is the allow-list of subcommands
var gitVerbs = map[string]bool{
	"status":    true,
	"diff":      true,
	"log":       true,
	"show":      true,
	"branch":    true,
	"add":       true,
	"commit":    true,
	"checkout":  true,
	"switch":    true,
	"stash":     true,
	"restore":   true,
	"fetch":     true,
	"pull":      true,
	"push":      true,
	"rev-parse": true,
	"remote":    true,
	"tag":       true,
}

// gitForbidden flags are rejected wherever they appear. Flags taking a value
// are also rejected in their --flag=value form.
var gitForbidden = []string{
	"--force",
	"--force-with-lease",
	"-f",
	"--hard",
	"--exec",
	"-c",
	"--config",
	"--upload-pack",
	"--receive-pack",
	"--output",
}

// gitVerbForbidden are flags rejected only for one verb
var gitVerbForbidden = map[string][]string{
	"push":   {"--mirror", "--delete", "-d", "--prune"},
	"branch": {"-D", "-M", "-C"},
}

// wholeTreePathspecs discard every local change when given to checkout or restore
var wholeTreePathspecs = map[string]bool{".": true, "./": true, ":/": true, "*": true}

type gitInput struct {
	Args []string
}

// GitTool runs allow-listed git subcommands directly, without a shell
type GitTool struct {
	lookPath func(string) (string, error)
}

// NewGitTool creates the git tool
func NewGitTool() *GitTool {
	return &GitTool{lookPath: exec.LookPath}
}

func (t *GitTool) ID() string { return GitToolID }

// Match accepts "git <verb> [args...]" when the verb is allow-listed and no
// forbidden flag or shell metacharacter is present. Anything else is declined
// rather than sanitized.
func (t *GitTool) Match(commandText string) (Plan, bool) {
	if hasShellMeta(commandText) {
		return Plan{}, false
	}
	tokens, err := tokenize(commandText)
	if err != nil || len(tokens) < 2 || tokens[0] != "git" {
		return Plan{}, false
	}
	if !gitVerbs[tokens[1]] {
		return Plan{}, false
	}
	verb := tokens[1]
	for _, arg := range tokens[2:] {
		if isForbiddenGitArg(arg) || isForbiddenForVerb(verb, arg) {
			return Plan{}, false
		}
	}

	args := tokens[1:]
	return Plan{
		Input:   gitInput{Args: args},
		Preview: "git " + strings.Join(args, " "),
	}, true
}

func isForbiddenGitArg(arg string) bool {
	for _, flag := range gitForbidden {
		if arg == flag || strings.HasPrefix(arg, flag+"=") {
			return true
		}
	}
	// Bundled short flags like -fd
	if strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") && len(arg) > 2 {
		return strings.ContainsAny(arg[1:], "fc")
	}
	return false
}

// isForbiddenForVerb blocks the destructive forms of otherwise allowed verbs,
// such as a refspec that forces or deletes on the remote.
func isForbiddenForVerb(verb, arg string) bool {
	for _, flag := range gitVerbForbidden[verb] {
		if arg == flag || strings.HasPrefix(arg, flag+"=") {
			return true
		}
	}

	switch verb {
	case "push":
		// +src:dst forces, :dst deletes
		return strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, ":")
	case "branch":
		if strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") && len(arg) > 2 {
			return strings.ContainsAny(arg[1:], "DMC")
		}
	case "checkout", "restore":
		return wholeTreePathspecs[arg]
	}
	return false
}

func (t *GitTool) Preflight(ec ExecContext, plan Plan) PreflightResult {
	if _, err := t.lookPath("git"); err != nil {
		return preflightFailure(CodeExecutableAbsent, fmt.Sprintf("git not found on PATH: %v", err))
	}
	return PreflightResult{OK: true}
}

func (t *GitTool) Execute(ec ExecContext, plan Plan) Result {
	in, ok := plan.Input.(gitInput)
	if !ok {
		return Result{SpawnErr: fmt.Errorf("unexpected plan input %T", plan.Input)}
	}
	return runProcess(ec, "git", in.Args)
}
