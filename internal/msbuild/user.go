package msbuild

import (
	"errors"
	"io/fs"
	"strings"
)

// debugCondition scopes the launch settings to the Debug build
// configuration on the AnyCPU platform.
const debugCondition = `'$(Configuration)|$(Platform)' == 'Debug|AnyCPU'`

// DebugLaunch is the desired per-user debug-launch state.
type DebugLaunch struct {
	Program   string
	Arguments string
}

// EnsureDebugLaunch ensures the per-user settings document points the
// debugger at the given external program. The file is created from a
// minimal skeleton when absent. Returns whether the document was
// written; applying the same state twice writes once.
func EnsureDebugLaunch(userFile string, launch DebugLaunch) (bool, error) {
	doc, err := LoadDocument(userFile)
	if errors.Is(err, fs.ErrNotExist) {
		root := &Node{Type: ElementNode, Name: "Project", Attrs: []Attr{
			{Name: "ToolsVersion", Value: "Current"},
			{Name: "xmlns", Value: MSBuildNamespace},
		}}
		doc = NewDocument(userFile, root)
	} else if err != nil {
		return false, err
	}

	group := findDebugGroup(doc.Root)
	if group == nil {
		group = doc.Root.AppendElement("PropertyGroup", Attr{Name: "Condition", Value: debugCondition})
		doc.MarkDirty()
	}

	changed := false
	for _, field := range []struct{ name, want string }{
		{"StartAction", "Program"},
		{"StartProgram", launch.Program},
		{"StartArguments", launch.Arguments},
	} {
		if ensureField(group, field.name, field.want) {
			changed = true
		}
	}
	if changed {
		doc.MarkDirty()
	}

	if !doc.Dirty() {
		return false, nil
	}
	if err := doc.Save(); err != nil {
		return false, err
	}
	return true, nil
}

// ensureField sets the named child element to want, reporting whether
// a mutation occurred.
func ensureField(group *Node, name, want string) bool {
	el, created := group.FindOrCreate(name)
	if created || el.Text() != want {
		el.SetText(want)
		return true
	}
	return false
}

// findDebugGroup locates the PropertyGroup conditioned on Debug|AnyCPU.
// Condition spelling varies between project flavors, so matching is on
// the whitespace-stripped form containing the configuration pair.
func findDebugGroup(root *Node) *Node {
	for _, group := range root.ChildrenNamed("PropertyGroup") {
		cond := strings.ReplaceAll(group.Attr("Condition"), " ", "")
		if strings.Contains(cond, "'Debug|AnyCPU'") {
			return group
		}
	}
	return nil
}
