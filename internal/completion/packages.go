package completion

import (
	"path"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
)

// PackageIndex resolves package paths, names and exported members from an
// interpreter symbol table.
type PackageIndex struct {
	exports interp.Exports
	paths   []string
	names   []string
	byName  map[string][]string
	members map[string][]string
}

// NewPackageIndex builds an index from yaegi exports, whose keys have the form
// "import/path/name".
func NewPackageIndex(exports interp.Exports) *PackageIndex {
	idx := &PackageIndex{
		exports: exports,
		byName:  map[string][]string{},
		members: map[string][]string{},
	}

	for key, symbols := range exports {
		importPath, name := path.Split(key)
		importPath = strings.TrimSuffix(importPath, "/")
		if importPath == "" || strings.Contains(importPath, "internal") {
			continue
		}

		if _, ok := idx.members[importPath]; !ok {
			idx.paths = append(idx.paths, importPath)
			if len(idx.byName[name]) == 0 {
				idx.names = append(idx.names, name)
			}
			idx.byName[name] = append(idx.byName[name], importPath)
		}
		idx.members[importPath] = append(idx.members[importPath], exportedNames(symbols)...)
	}

	sort.Strings(idx.paths)
	sort.Strings(idx.names)
	for name := range idx.byName {
		sort.Strings(idx.byName[name])
	}
	for p := range idx.members {
		sort.Strings(idx.members[p])
	}
	return idx
}

func exportedNames(symbols map[string]reflect.Value) []string {
	var names []string
	for name := range symbols {
		// Wrappers for interfaces are exported as _Name.
		if name == "" || name[0] == '_' {
			continue
		}
		if first := name[0]; first >= 'A' && first <= 'Z' {
			names = append(names, name)
		}
	}
	return names
}

// Paths returns all import paths, sorted.
func (p *PackageIndex) Paths() []string {
	return append([]string(nil), p.paths...)
}

// Names returns all package names, sorted.
func (p *PackageIndex) Names() []string {
	return append([]string(nil), p.names...)
}

// Resolve returns the import paths of packages called name.
func (p *PackageIndex) Resolve(name string) []string {
	return append([]string(nil), p.byName[name]...)
}

// Members returns the exported members of the package at importPath.
func (p *PackageIndex) Members(importPath string) []string {
	return append([]string(nil), p.members[importPath]...)
}

// Lookup returns the exported symbol member of the package at importPath.
func (p *PackageIndex) Lookup(importPath, member string) (reflect.Value, bool) {
	for key, symbols := range p.exports {
		if dir, _ := path.Split(key); strings.TrimSuffix(dir, "/") != importPath {
			continue
		}
		v, ok := symbols[member]
		return v, ok
	}
	return reflect.Value{}, false
}

// Packages completes import paths inside an import statement and package names
// elsewhere.
func Packages(index *PackageIndex) Provider {
	return ProviderFunc(func(expression string) (Result, bool) {
		trimmed := strings.TrimLeft(expression, " \t")
		if strings.HasPrefix(trimmed, "import") {
			quote := strings.LastIndex(expression, "\"")
			if quote < 0 || strings.Count(expression, "\"")%2 == 0 {
				return Result{}, false
			}
			found := matching(index.paths, expression[quote+1:])
			if len(found) == 0 {
				return Result{}, false
			}
			return Result{Expression: expression, Position: quote + 1, Candidates: found}, true
		}
		return wordResult(expression, index.names)
	})
}

// PackageMembers completes exported members after a package name, as in
// strings.Has.
func PackageMembers(index *PackageIndex) Provider {
	return ProviderFunc(func(expression string) (Result, bool) {
		position := MemberStart(expression)
		if position < 0 {
			return Result{}, false
		}
		name := expression[WordStart(expression) : position-1]

		var members []string
		for _, importPath := range index.Resolve(name) {
			members = append(members, index.Members(importPath)...)
		}
		found := matching(members, expression[position:])
		if len(found) == 0 {
			return Result{}, false
		}
		return Result{Expression: expression, Position: position, Candidates: found}, true
	})
}
