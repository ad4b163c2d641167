package nifti

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"segvalidate/internal/models"
)

// Image is a decoded 3D NIfTI volume.
type Image struct {
	// Width, Height, Depth are dim[1..3]
	Width, Height, Depth int

	// Spacing is the voxel size in mm along x, y and z
	Spacing [3]float64

	// Datatype is the NIfTI datatype code of the stored voxels
	Datatype int16

	// Data holds the scaled voxel values, x fastest
	Data []float64
}

// Binarize returns a binary volume where a voxel is foreground when its value
// is positive and at least threshold.
func (img *Image) Binarize(threshold float64) *models.Volume {
	vol := models.NewVolume(img.Width, img.Height, img.Depth)
	for i, v := range img.Data {
		if v > 0 && v >= threshold {
			vol.Data[i] = 1
		}
	}
	return vol
}

// Labels converts the image to a label volume. Every voxel must hold a
// non-negative integral value.
func (img *Image) Labels() (*models.Volume, error) {
	vol := models.NewVolume(img.Width, img.Height, img.Depth)
	for i, v := range img.Data {
		if v < 0 || v > math.MaxUint32 || v != math.Trunc(v) {
			return nil, errors.Errorf("voxel %d holds %v, not a label value", i, v)
		}
		vol.Data[i] = uint32(v)
	}
	return vol, nil
}

// Read loads a NIfTI file, decompressing it when the name ends in .gz.
func Read(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open nifti file")
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open gzip stream of %s", path)
		}
		defer zr.Close()
		r = zr
	}

	img, err := Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return img, nil
}

// Write stores vol as a uint32 NIfTI file, gzip compressed when the name ends
// in .gz.
func Write(path string, vol *models.Volume, spacing [3]float64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create nifti file")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "failed to close nifti file")
		}
	}()

	bw := bufio.NewWriter(f)
	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(bw)
		if err := Encode(zw, vol, spacing); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, "failed to finish gzip stream")
		}
	} else if err := Encode(bw, vol, spacing); err != nil {
		return err
	}

	return errors.Wrap(bw.Flush(), "failed to flush nifti file")
}

// Decode reads a single-file NIfTI-1 volume from r.
func Decode(r io.Reader) (*Image, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	order, ok := byteOrder(raw)
	if !ok {
		return nil, errors.New("not a NIfTI-1 header")
	}

	var hdr header
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, errors.Wrap(err, "failed to parse header")
	}
	if string(hdr.Magic[:3]) != "n+1" {
		return nil, errors.Errorf("unsupported magic %q, only single-file NIfTI-1 is supported", hdr.Magic[:3])
	}

	ndim := int(hdr.Dim[0])
	if ndim < 1 || ndim > 7 {
		return nil, errors.Errorf("invalid dimension count %d", ndim)
	}
	dims := [3]int{1, 1, 1}
	for i := 1; i <= ndim; i++ {
		n := int(hdr.Dim[i])
		if n < 1 {
			return nil, errors.Errorf("invalid size %d along dimension %d", n, i)
		}
		if i <= 3 {
			dims[i-1] = n
		} else if n != 1 {
			return nil, errors.Errorf("only 3D volumes are supported, dimension %d has size %d", i, n)
		}
	}

	bits, ok := bitsPerVoxel[hdr.Datatype]
	if !ok {
		return nil, errors.Errorf("unsupported datatype %d", hdr.Datatype)
	}

	// Skip extensions up to the voxel data
	skip := int64(hdr.VoxOffset) - headerSize
	if skip < 0 {
		return nil, errors.Errorf("invalid vox_offset %v", hdr.VoxOffset)
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, errors.Wrap(err, "failed to skip header extensions")
	}

	img := &Image{
		Width:    dims[0],
		Height:   dims[1],
		Depth:    dims[2],
		Spacing:  [3]float64{float64(hdr.Pixdim[1]), float64(hdr.Pixdim[2]), float64(hdr.Pixdim[3])},
		Datatype: hdr.Datatype,
	}

	// Buffer only what the stream holds; dims claiming more fail on EOF.
	n := dims[0] * dims[1] * dims[2]
	size := int64(n) * int64(bits/8)
	buf, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read voxel data")
	}
	if int64(len(buf)) < size {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "truncated voxel data: got %d of %d bytes", len(buf), size)
	}
	img.Data = decodeVoxels(buf, hdr.Datatype, order, n)

	if hdr.SclSlope != 0 && !(hdr.SclSlope == 1 && hdr.SclInter == 0) {
		slope, inter := float64(hdr.SclSlope), float64(hdr.SclInter)
		for i := range img.Data {
			img.Data[i] = img.Data[i]*slope + inter
		}
	}

	return img, nil
}

// decodeVoxels converts raw voxel bytes of a supported datatype to float64.
func decodeVoxels(buf []byte, datatype int16, order binary.ByteOrder, n int) []float64 {
	data := make([]float64, n)
	for i := 0; i < n; i++ {
		switch datatype {
		case DTUint8:
			data[i] = float64(buf[i])
		case DTInt8:
			data[i] = float64(int8(buf[i]))
		case DTInt16:
			data[i] = float64(int16(order.Uint16(buf[2*i:])))
		case DTUint16:
			data[i] = float64(order.Uint16(buf[2*i:]))
		case DTInt32:
			data[i] = float64(int32(order.Uint32(buf[4*i:])))
		case DTUint32:
			data[i] = float64(order.Uint32(buf[4*i:]))
		case DTFloat32:
			data[i] = float64(math.Float32frombits(order.Uint32(buf[4*i:])))
		case DTFloat64:
			data[i] = math.Float64frombits(order.Uint64(buf[8*i:]))
		}
	}
	return data
}

// Encode writes vol as a little-endian uint32 single-file NIfTI-1 volume with
// an axis-aligned sform built from spacing.
func Encode(w io.Writer, vol *models.Volume, spacing [3]float64) error {
	if err := vol.Validate(); err != nil {
		return errors.Wrap(err, "invalid volume")
	}
	for _, d := range vol.Shape() {
		if d > math.MaxInt16 {
			return errors.Errorf("dimension %d exceeds the NIfTI-1 limit", d)
		}
	}

	hdr := header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Dim:       [8]int16{3, int16(vol.Width), int16(vol.Height), int16(vol.Depth), 1, 1, 1, 1},
		Datatype:  DTUint32,
		Bitpix:    32,
		Pixdim:    [8]float32{1, float32(spacing[0]), float32(spacing[1]), float32(spacing[2]), 1, 1, 1, 1},
		VoxOffset: voxOffset,
		SclSlope:  1,
		XYZTUnits: 2, // mm
		SformCode: 1,
		SrowX:     [4]float32{float32(spacing[0]), 0, 0, 0},
		SrowY:     [4]float32{0, float32(spacing[1]), 0, 0},
		SrowZ:     [4]float32{0, 0, float32(spacing[2]), 0},
		Magic:     [4]byte{'n', '+', '1', 0},
	}

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	// Empty extension block
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return errors.Wrap(err, "failed to write extension")
	}

	buf := make([]byte, 4*len(vol.Data))
	for i, v := range vol.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], v)
	}
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "failed to write voxel data")
	}

	return nil
}
