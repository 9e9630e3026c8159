package navigation

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultDeclaration []byte

const (
	DefaultHomeKey   = "1"
	DefaultHomeTitle = "Home"
	DefaultLoginPath = "/login"
)

// Declaration is the on-disk route declaration: the navigation tree plus
// the auxiliary breadcrumb metadata.
type Declaration struct {
	Routes []RouteNode `yaml:"routes"`
	Pages  PageConfig  `yaml:"pages"`
}

// PageConfig holds the lookup maps consulted only by the breadcrumb resolver.
type PageConfig struct {
	HomeKey   string `yaml:"home_key"`
	HomeTitle string `yaml:"home_title"`
	LoginPath string `yaml:"login_path"`

	// SubPageMap maps a child key to the title shown in its breadcrumb.
	SubPageMap map[string]string `yaml:"sub_pages"`

	// BreadcrumbConfig maps a child key to its parent crumb.
	BreadcrumbConfig map[string]BreadcrumbParent `yaml:"breadcrumbs"`
}

type BreadcrumbParent struct {
	ParentKey   string `yaml:"parent_key" json:"parent_key"`
	ParentTitle string `yaml:"parent_title" json:"parent_title"`
}

func (p *PageConfig) applyDefaults() {
	if p.HomeKey == "" {
		p.HomeKey = DefaultHomeKey
	}
	if p.HomeTitle == "" {
		p.HomeTitle = DefaultHomeTitle
	}
	if p.LoginPath == "" {
		p.LoginPath = DefaultLoginPath
	}
	if p.SubPageMap == nil {
		p.SubPageMap = map[string]string{}
	}
	if p.BreadcrumbConfig == nil {
		p.BreadcrumbConfig = map[string]BreadcrumbParent{}
	}
}

// ParseDeclaration decodes a YAML route declaration.
func ParseDeclaration(data []byte) (*Declaration, error) {
	var d Declaration
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse route declaration: %w", err)
	}
	if len(d.Routes) == 0 {
		return nil, fmt.Errorf("parse route declaration: no routes declared")
	}
	d.Pages.applyDefaults()
	return &d, nil
}

// DefaultDeclarationBytes returns the embedded declaration source.
func DefaultDeclarationBytes() []byte {
	return defaultDeclaration
}

// LoadDeclaration reads the declaration at path, or the embedded default when
// path is empty.
func LoadDeclaration(path string) (*Declaration, error) {
	if path == "" {
		return ParseDeclaration(defaultDeclaration)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route declaration %s: %w", path, err)
	}
	return ParseDeclaration(data)
}

// Table builds the RouteTable described by the declaration.
func (d *Declaration) Table() (*RouteTable, error) {
	return NewRouteTable(d.Routes)
}
