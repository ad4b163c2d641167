// Package nifti reads and writes single-file NIfTI-1 volumes (.nii and
// .nii.gz), the on-disk format of the ground-truth and detection volumes.
//
// Only 3D scalar volumes are supported. Trailing dimensions of size 1 are
// accepted on read.
package nifti

import (
	"encoding/binary"
)

const (
	headerSize = 348
	voxOffset  = 352
)

// NIfTI-1 datatype codes
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTInt8    int16 = 256
	DTUint16  int16 = 512
	DTUint32  int16 = 768
)

// bitsPerVoxel maps supported datatypes to their size in bits.
var bitsPerVoxel = map[int16]int16{
	DTUint8:   8,
	DTInt16:   16,
	DTInt32:   32,
	DTFloat32: 32,
	DTFloat64: 64,
	DTInt8:    8,
	DTUint16:  16,
	DTUint32:  32,
}

// header is the 348 byte NIfTI-1 header.
type header struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	TOffset       float32
	GLMax         int32
	GLMin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QOffsetX      float32
	QOffsetY      float32
	QOffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// byteOrder detects the header endianness from sizeof_hdr.
func byteOrder(prefix []byte) (binary.ByteOrder, bool) {
	switch {
	case binary.LittleEndian.Uint32(prefix) == headerSize:
		return binary.LittleEndian, true
	case binary.BigEndian.Uint32(prefix) == headerSize:
		return binary.BigEndian, true
	}
	return nil, false
}
