package msbuild

import (
	"path"
	"strings"
)

// itemKinds are the item element names that can carry a build-copy
// directive for a content file.
var itemKinds = map[string]bool{
	"None":             true,
	"Content":          true,
	"EmbeddedResource": true,
}

// CopyResult reports the outcome of EnsureCopyToOutput.
type CopyResult struct {
	// Found is false when the project has no item for the file. That
	// is reported, not fatal: copying may be handled by convention
	// elsewhere.
	Found bool

	// Changed is true when the document was rewritten.
	Changed bool
}

// EnsureCopyToOutput ensures the project item for fileName is copied to
// the build output on every build. The document is left untouched when
// the directive is already correct.
func EnsureCopyToOutput(projectFile, fileName string) (CopyResult, error) {
	doc, err := LoadDocument(projectFile)
	if err != nil {
		return CopyResult{}, err
	}

	item := findContentItem(doc.Root, fileName)
	if item == nil {
		return CopyResult{Found: false}, nil
	}

	directive, created := item.FindOrCreate("CopyToOutputDirectory")
	if created || directive.Text() != "Always" {
		directive.SetText("Always")
		doc.MarkDirty()
	}

	if !doc.Dirty() {
		return CopyResult{Found: true, Changed: false}, nil
	}
	if err := doc.Save(); err != nil {
		return CopyResult{}, err
	}
	return CopyResult{Found: true, Changed: true}, nil
}

// findContentItem locates the item whose Include refers to fileName.
// Include values are project-relative Windows paths, so only the final
// path segment is compared, case-insensitive.
func findContentItem(root *Node, fileName string) *Node {
	for _, group := range root.ChildrenNamed("ItemGroup") {
		for _, item := range group.Elements() {
			if !itemKinds[item.Name] {
				continue
			}
			include := strings.ReplaceAll(item.Attr("Include"), `\`, "/")
			if strings.EqualFold(path.Base(include), fileName) {
				return item
			}
		}
	}
	return nil
}
