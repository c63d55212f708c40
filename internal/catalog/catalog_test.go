package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Load(t *testing.T) {
	content := `skus:
  - sku: AAA-0001
    source_url: https://example.com/datasets/master.zip
    category: Fruits
  - sku: AAA-0002
    source_url: https://example.com/datasets/cifar-10.tar.gz
    archive_kind: targz
    category: CIFAR-10 Objects
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	assert.Equal(t, "AAA-0001", c.SKUs[0].SKU)
	assert.Equal(t, KindUnknown, c.SKUs[0].ArchiveKind, "missing kind defaults to unknown")
	assert.Equal(t, KindTarGz, c.SKUs[1].ArchiveKind)
}

func TestCatalog_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []SkuTask
		wantErr string
	}{
		{
			name:    "empty catalog",
			tasks:   nil,
			wantErr: "catalog is empty",
		},
		{
			name: "duplicate sku",
			tasks: []SkuTask{
				{SKU: "AAA-0001", SourceURL: "https://example.com/a.zip"},
				{SKU: "AAA-0001", SourceURL: "https://example.com/b.zip"},
			},
			wantErr: "duplicate sku",
		},
		{
			name: "missing source url",
			tasks: []SkuTask{
				{SKU: "AAA-0001"},
			},
			wantErr: "missing source_url",
		},
		{
			name: "non-http source url",
			tasks: []SkuTask{
				{SKU: "AAA-0001", SourceURL: "ftp://example.com/a.zip"},
			},
			wantErr: "invalid source_url",
		},
		{
			name: "invalid archive kind",
			tasks: []SkuTask{
				{SKU: "AAA-0001", SourceURL: "https://example.com/a.zip", ArchiveKind: "rar"},
			},
			wantErr: "invalid archive_kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tasks)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSkuTask_Filename(t *testing.T) {
	task := SkuTask{SourceURL: "https://example.com/archive/refs/heads/master.zip?token=abc"}
	assert.Equal(t, "master.zip", task.Filename())
}
