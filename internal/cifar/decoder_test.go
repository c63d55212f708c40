package cifar

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialaky/ProductImagePipeline/internal/observability"
)

// tinyLayout is a hand-checkable 2×2 RGB record: 1 label byte + 12 pixel
// bytes stored as three 4-byte planes.
var tinyLayout = Layout{LabelBytes: 1, Side: 2, Channels: 3}

// buildRecord assembles one packed record from planar channel data.
func buildRecord(label byte, r, g, b []byte) []byte {
	rec := []byte{label}
	rec = append(rec, r...)
	rec = append(rec, g...)
	rec = append(rec, b...)
	return rec
}

func TestLayout_RecordSize(t *testing.T) {
	assert.Equal(t, 13, tinyLayout.RecordSize())
	assert.Equal(t, 3073, CIFAR10.RecordSize())
	assert.Equal(t, 3074, CIFAR100.RecordSize())
}

func TestDecoder_DeplanarizesChannels(t *testing.T) {
	// Pixel i must come out as (r[i], g[i], b[i]) interleaved.
	rec := buildRecord(7,
		[]byte{0x10, 0x11, 0x12, 0x13},
		[]byte{0x20, 0x21, 0x22, 0x23},
		[]byte{0x30, 0x31, 0x32, 0x33},
	)

	d := NewDecoder(tinyLayout, observability.Nop())
	images, corrupt, err := d.Decode(bytes.NewReader(rec), int64(len(rec)))
	require.NoError(t, err)
	assert.Zero(t, corrupt)
	require.Len(t, images, 1)

	img := images[0]
	assert.Equal(t, 7, img.Label)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, []byte{
		0x10, 0x20, 0x30,
		0x11, 0x21, 0x31,
		0x12, 0x22, 0x32,
		0x13, 0x23, 0x33,
	}, img.Pixels)
}

func TestDecoder_SequenceIndices(t *testing.T) {
	var buf bytes.Buffer
	const n = 5
	for i := 0; i < n; i++ {
		plane := bytes.Repeat([]byte{byte(i)}, 4)
		buf.Write(buildRecord(byte(i), plane, plane, plane))
	}

	d := NewDecoder(tinyLayout, observability.Nop())
	images, corrupt, err := d.Decode(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Zero(t, corrupt)
	require.Len(t, images, n)

	for i, img := range images {
		assert.Equal(t, i, img.Index)
		assert.Equal(t, i, img.Label)
	}
}

func TestDecoder_CorruptTrailingBytes(t *testing.T) {
	var buf bytes.Buffer
	plane := bytes.Repeat([]byte{0xaa}, 4)
	buf.Write(buildRecord(1, plane, plane, plane))
	buf.Write(buildRecord(2, plane, plane, plane))
	buf.Write([]byte{0xde, 0xad, 0xbe}) // trailing fragment

	d := NewDecoder(tinyLayout, observability.Nop())
	images, corrupt, err := d.Decode(bytes.NewReader(buf.Bytes()), int64(buf.Len()))

	var cerr *CorruptBatchError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, int64(29), cerr.Size)
	assert.Equal(t, 13, cerr.RecordSize)

	// Whole records are still decoded; the fragment counts as corrupt.
	require.Len(t, images, 2)
	assert.Equal(t, 1, corrupt)
	assert.Equal(t, 0, images[0].Index)
	assert.Equal(t, 1, images[1].Index)
}

func TestDecoder_TruncatedStream(t *testing.T) {
	plane := bytes.Repeat([]byte{0x01}, 4)
	rec := buildRecord(0, plane, plane, plane)

	// Claim three records but provide only one and a half.
	data := append(append([]byte{}, rec...), rec[:6]...)
	claimed := int64(3 * tinyLayout.RecordSize())

	d := NewDecoder(tinyLayout, observability.Nop())
	images, corrupt, err := d.Decode(bytes.NewReader(data), claimed)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, 2, corrupt)
}

func TestDecoder_IsBatchMember(t *testing.T) {
	d := NewDecoder(CIFAR10, observability.Nop())

	assert.True(t, d.IsBatchMember("cifar-10-batches-bin/data_batch_1.bin", 3073*100))
	assert.True(t, d.IsBatchMember("test_batch.bin", 3073))
	assert.False(t, d.IsBatchMember("image.png", 3073*10))
	assert.False(t, d.IsBatchMember("data_batch_1.bin", 0))
	assert.False(t, d.IsBatchMember("data_batch_1.bin", 100), "smaller than one record")
}
