// Package catalog provides the SKU catalog model and loading.
package catalog

import (
	"fmt"
	"net/url"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// ArchiveKind identifies the container format of a source archive.
type ArchiveKind string

const (
	KindZip     ArchiveKind = "zip"
	KindTar     ArchiveKind = "tar"
	KindTgz     ArchiveKind = "tgz"
	KindTarGz   ArchiveKind = "targz"
	KindUnknown ArchiveKind = "unknown"
)

// Valid reports whether k is a recognized archive kind.
func (k ArchiveKind) Valid() bool {
	switch k {
	case KindZip, KindTar, KindTgz, KindTarGz, KindUnknown:
		return true
	}
	return false
}

// SkuTask describes one catalog item driving one pipeline run.
// Immutable after catalog load.
type SkuTask struct {
	SKU         string      `yaml:"sku" json:"sku"`
	SourceURL   string      `yaml:"source_url" json:"source_url"`
	ArchiveKind ArchiveKind `yaml:"archive_kind" json:"archive_kind"`
	Category    string      `yaml:"category" json:"category"`
}

// Filename returns the archive filename derived from the source URL.
func (t SkuTask) Filename() string {
	u, err := url.Parse(t.SourceURL)
	if err != nil || u.Path == "" {
		return path.Base(t.SourceURL)
	}
	return path.Base(u.Path)
}

// Catalog is an ordered list of SKU tasks.
type Catalog struct {
	SKUs []SkuTask `yaml:"skus"`
}

// Load reads a catalog from a YAML file and validates it.
func Load(filePath string) (*Catalog, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	return &c, nil
}

// New constructs a catalog from inline tasks, filling defaults and validating.
func New(tasks []SkuTask) (*Catalog, error) {
	c := &Catalog{SKUs: tasks}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks uniqueness of SKU codes and well-formedness of each task.
// An empty archive_kind is normalized to "unknown" (resolved later by
// content sniffing).
func (c *Catalog) Validate() error {
	if len(c.SKUs) == 0 {
		return fmt.Errorf("catalog is empty")
	}

	seen := make(map[string]struct{}, len(c.SKUs))
	for i := range c.SKUs {
		t := &c.SKUs[i]
		if t.SKU == "" {
			return fmt.Errorf("catalog entry %d: missing sku", i)
		}
		if _, dup := seen[t.SKU]; dup {
			return fmt.Errorf("duplicate sku: %s", t.SKU)
		}
		seen[t.SKU] = struct{}{}

		if t.SourceURL == "" {
			return fmt.Errorf("sku %s: missing source_url", t.SKU)
		}
		u, err := url.Parse(t.SourceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("sku %s: invalid source_url %q", t.SKU, t.SourceURL)
		}

		if t.ArchiveKind == "" {
			t.ArchiveKind = KindUnknown
		}
		if !t.ArchiveKind.Valid() {
			return fmt.Errorf("sku %s: invalid archive_kind %q", t.SKU, t.ArchiveKind)
		}
	}
	return nil
}

// Len returns the number of tasks.
func (c *Catalog) Len() int {
	return len(c.SKUs)
}
