// Package cifar decodes CIFAR-style packed-record batch files into
// individual raster images.
//
// A batch file is a repeating sequence of fixed-size records, each holding
// a label prefix followed by a channel-planar pixel block: all red values,
// then all green values, then all blue values, each plane a square of the
// layout's side length. The planes are re-interleaved into a single RGB
// raster on decode. The planar layout is an external binary contract and
// must not be read as interleaved RGB.
package cifar

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vialaky/ProductImagePipeline/internal/observability"
)

// Layout describes one packed-record variant.
type Layout struct {
	LabelBytes int // label prefix size: 1 for CIFAR-10, 2 for CIFAR-100
	Side       int // square raster side length
	Channels   int // color channel planes per record
}

// Standard layouts.
var (
	CIFAR10  = Layout{LabelBytes: 1, Side: 32, Channels: 3}
	CIFAR100 = Layout{LabelBytes: 2, Side: 32, Channels: 3}
)

// RecordSize returns the byte size of one record.
func (l Layout) RecordSize() int {
	return l.LabelBytes + l.Side*l.Side*l.Channels
}

// Image is one decoded raster with interleaved RGB pixel data.
type Image struct {
	Pixels   []byte // len = Width*Height*Channels, interleaved
	Width    int
	Height   int
	Channels int
	Label    int
	Index    int // record index within the source batch
}

// CorruptBatchError indicates a batch whose size is not a whole number of
// records. No partial record may be silently dropped, so the batch is
// rejected up front.
type CorruptBatchError struct {
	Size       int64
	RecordSize int
}

func (e *CorruptBatchError) Error() string {
	return fmt.Sprintf("corrupt batch: size %d is not a multiple of record size %d",
		e.Size, e.RecordSize)
}

// Decoder splits packed-record batch files into images.
type Decoder struct {
	layout Layout
	logger *observability.Logger
}

// NewDecoder creates a Decoder for the given record layout.
func NewDecoder(layout Layout, logger *observability.Logger) *Decoder {
	return &Decoder{layout: layout, logger: logger.WithStage("convert")}
}

// IsBatchMember reports whether an extracted member looks like a
// packed-record batch for the decoder's layout: a ".bin" extension or a
// "batch" filename, with a size that divides evenly into records.
func (d *Decoder) IsBatchMember(path string, size int64) bool {
	if size == 0 {
		return false
	}
	name := strings.ToLower(filepath.Base(path))
	if filepath.Ext(name) != ".bin" && !strings.Contains(name, "batch") {
		return false
	}
	return size >= int64(d.layout.RecordSize())
}

// DecodeFile decodes the batch file at path.
func (d *Decoder) DecodeFile(path string) ([]Image, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open batch: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat batch: %w", err)
	}
	return d.Decode(f, fi.Size())
}

// Decode reads size bytes from r as consecutive records and returns one
// image per valid record, with Index equal to the record index. The count
// of corrupt records is returned separately; a failure at record N does
// not discard the images decoded before it.
//
// A size that is not a whole number of records fails with
// *CorruptBatchError, but the whole records preceding the trailing
// fragment are still decoded and returned with the error. The fragment is
// counted as one corrupt record, never silently dropped.
func (d *Decoder) Decode(r io.Reader, size int64) ([]Image, int, error) {
	recordSize := d.layout.RecordSize()

	var sizeErr error
	if size%int64(recordSize) != 0 {
		sizeErr = &CorruptBatchError{Size: size, RecordSize: recordSize}
	}

	total := int(size / int64(recordSize))
	images := make([]Image, 0, total)
	record := make([]byte, recordSize)

	for i := 0; i < total; i++ {
		if _, err := io.ReadFull(r, record); err != nil {
			corrupt := total - len(images)
			d.logger.Warn().
				Int("record", i).
				Int("corrupt", corrupt).
				Err(err).
				Msg("batch truncated mid-record")
			return images, corrupt, sizeErr
		}
		images = append(images, d.decodeRecord(record, i))
	}

	if sizeErr != nil {
		d.logger.Warn().
			Int("records", total).
			Int64("trailing_bytes", size%int64(recordSize)).
			Msg("batch has a trailing partial record")
		return images, 1, sizeErr
	}
	return images, 0, nil
}

// decodeRecord splits off the label prefix and re-interleaves the planar
// channel data into a single RGB raster.
func (d *Decoder) decodeRecord(record []byte, index int) Image {
	l := d.layout
	plane := l.Side * l.Side

	label := 0
	for _, b := range record[:l.LabelBytes] {
		label = label<<8 | int(b)
	}

	data := record[l.LabelBytes:]
	pixels := make([]byte, plane*l.Channels)
	for i := 0; i < plane; i++ {
		for c := 0; c < l.Channels; c++ {
			pixels[i*l.Channels+c] = data[c*plane+i]
		}
	}

	return Image{
		Pixels:   pixels,
		Width:    l.Side,
		Height:   l.Side,
		Channels: l.Channels,
		Label:    label,
		Index:    index,
	}
}
