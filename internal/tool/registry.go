package tool

// Registry holds tools in dispatch order. The first tool whose Match accepts
// the text wins.
type Registry struct {
	tools []Tool
}

// NewRegistry creates a registry that tries tools in the given order
func NewRegistry(tools ...Tool) *Registry {
	return &Registry{tools: tools}
}

// DefaultRegistry returns the standard dispatch order: artifact installer,
// git, then the shell catch-all.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewArtifactInstaller(),
		NewGitTool(),
		NewShellTool(),
	)
}

// Plan finds the first tool that accepts commandText
func (r *Registry) Plan(commandText string) (Tool, Plan, bool) {
	for _, t := range r.tools {
		if plan, ok := t.Match(commandText); ok {
			plan.ToolID = t.ID()
			return t, plan, true
		}
	}
	return nil, Plan{}, false
}

// IDs returns the registered tool ids in dispatch order
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.tools))
	for i, t := range r.tools {
		ids[i] = t.ID()
	}
	return ids
}
