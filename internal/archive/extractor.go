// Package archive extracts downloaded source archives into per-SKU
// scratch directories.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/vialaky/ProductImagePipeline/internal/catalog"
	"github.com/vialaky/ProductImagePipeline/internal/observability"
)

// Member is one file extracted from an archive.
type Member struct {
	Path string
	Size int64
}

// Extractor unpacks zip/tar/tgz/targz archives.
type Extractor struct {
	logger *observability.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *observability.Logger) *Extractor {
	return &Extractor{logger: logger.WithStage("extract")}
}

// Extract unpacks the archive at srcPath into destDir and returns the
// extracted members together with the resolved archive kind.
//
// A declared kind of "unknown" is resolved by filename and leading-bytes
// inspection; an unresolvable kind fails with ErrUnsupportedFormat. Member
// paths that would escape destDir are rejected without being written. When
// some members fail the successfully written members are returned alongside
// a *PartialError; the caller decides whether to continue with them.
func (e *Extractor) Extract(srcPath string, declared catalog.ArchiveKind, destDir string) ([]Member, catalog.ArchiveKind, error) {
	kind := declared
	if kind == catalog.KindUnknown || kind == "" {
		detected, err := DetectKind(srcPath)
		if err != nil {
			return nil, catalog.KindUnknown, err
		}
		kind = detected
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, kind, fmt.Errorf("create extract dir: %w", err)
	}

	var (
		members []Member
		err     error
	)
	switch kind {
	case catalog.KindZip:
		members, err = e.extractZip(srcPath, destDir)
	case catalog.KindTar:
		members, err = e.extractTar(srcPath, destDir, false)
	case catalog.KindTgz, catalog.KindTarGz:
		members, err = e.extractTar(srcPath, destDir, true)
	default:
		return nil, kind, ErrUnsupportedFormat
	}

	if err != nil {
		return members, kind, err
	}

	e.logger.Debug().
		Str("archive", filepath.Base(srcPath)).
		Str("kind", string(kind)).
		Int("members", len(members)).
		Msg("archive extracted")

	return members, kind, nil
}

// DetectKind classifies an archive by filename suffix, falling back to
// magic-byte sniffing for extensionless or oddly named files.
func DetectKind(path string) (catalog.ArchiveKind, error) {
	if kind := KindFromName(filepath.Base(path)); kind != catalog.KindUnknown {
		return kind, nil
	}
	return sniffKind(path)
}

// KindFromName classifies an archive by filename suffix alone. Returns
// "unknown" when no suffix matches.
func KindFromName(name string) catalog.ArchiveKind {
	name = strings.ToLower(name)
	switch {
	case strings.HasSuffix(name, ".tar.gz"):
		return catalog.KindTarGz
	case strings.HasSuffix(name, ".tgz"):
		return catalog.KindTgz
	case strings.HasSuffix(name, ".zip"):
		return catalog.KindZip
	case strings.HasSuffix(name, ".tar"):
		return catalog.KindTar
	}
	return catalog.KindUnknown
}

// sniffKind inspects the leading bytes of the file.
func sniffKind(path string) (catalog.ArchiveKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return catalog.KindUnknown, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	header := make([]byte, 265)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return catalog.KindUnknown, ErrUnsupportedFormat
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, []byte("PK\x03\x04")):
		return catalog.KindZip, nil
	case bytes.HasPrefix(header, []byte{0x1f, 0x8b}):
		// Gzip container; assume a tar stream inside.
		return catalog.KindTarGz, nil
	case len(header) >= 262 && bytes.Equal(header[257:262], []byte("ustar")):
		return catalog.KindTar, nil
	}
	return catalog.KindUnknown, ErrUnsupportedFormat
}

func (e *Extractor) extractZip(srcPath, destDir string) ([]Member, error) {
	r, err := zip.OpenReader(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var (
		members []Member
		merr    *multierror.Error
	)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		dest, err := securePath(destDir, f.Name)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}

		rc, err := f.Open()
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("member %s: %w", f.Name, err))
			continue
		}
		size, err := writeMember(dest, rc)
		rc.Close()
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("member %s: %w", f.Name, err))
			continue
		}

		members = append(members, Member{Path: dest, Size: size})
	}

	if merr.ErrorOrNil() != nil {
		return members, &PartialError{Extracted: len(members), Err: merr}
	}
	return members, nil
}

func (e *Extractor) extractTar(srcPath, destDir string, gzipped bool) ([]Member, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	var (
		members []Member
		merr    *multierror.Error
	)
	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The stream is unreadable past this point; report what
			// was extracted so far.
			merr = multierror.Append(merr, fmt.Errorf("read tar stream: %w", err))
			break
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		dest, err := securePath(destDir, hdr.Name)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}

		size, err := writeMember(dest, tr)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("member %s: %w", hdr.Name, err))
			continue
		}

		members = append(members, Member{Path: dest, Size: size})
	}

	if merr.ErrorOrNil() != nil {
		return members, &PartialError{Extracted: len(members), Err: merr}
	}
	return members, nil
}

// securePath joins a member name onto destDir, rejecting names that would
// resolve outside of it.
func securePath(destDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", &UnsafePathError{Member: name}
	}
	dest := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &UnsafePathError{Member: name}
	}
	return dest, nil
}

func writeMember(dest string, src io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	size, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return 0, err
	}
	return size, nil
}
