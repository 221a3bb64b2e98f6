package state

// DepType classifies a package_deps edge.
type DepType string

const (
	DepRequired   DepType = "required"
	DepOptional   DepType = "optional"
	DepSuggestion DepType = "suggestion"
)

// LocalCopyType is a bit mask describing which host wrapper kinds a
// package produced: 1=desktop entry, 2=executable shim, 3=both, 0=none.
type LocalCopyType int

const (
	CopyNone       LocalCopyType = 0
	CopyDesktop    LocalCopyType = 1
	CopyExecutable LocalCopyType = 2
	CopyBoth       LocalCopyType = 3
)

// Container is one row of the containers table.
type Container struct {
	Name          string
	Distribution  string
	SharedRoot    string
	Configuration string
	Destroyed     bool
}

// Package is one row of the packages table.
type Package struct {
	Name          string
	Container     string
	LocalCopies   []string // JSON-encoded in the packages.local_copies column
	Flags         map[string]string
	LocalCopyType LocalCopyType
	Explicit      bool
}

// PackageDep is one row of the package_deps table.
type PackageDep struct {
	Name       string
	Container  string
	Dependency string
	DepType    DepType
}

// Repo is one row of the repos table.
type Repo struct {
	Name            string
	ContainerOrRoot string
	URLs            []string
	Key             string
	Options         string
	WithSourceRepo  bool
}
