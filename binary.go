package guda

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// Binary image layout, little endian:
//
//	magic    [8]byte "GUDABIN\x00"
//	version  uint16
//	module   uint16 length + bytes
//	count    uint16
//	count × { name uint16 length + bytes, nparams uint8, params [nparams]uint8,
//	          shared uint32, flags uint8 }
//	crc32    uint32 IEEE over everything above
const binaryVersion = 1

var binaryMagic = [8]byte{'G', 'U', 'D', 'A', 'B', 'I', 'N', 0}

const flagCooperative = 1 << 0

// BinaryImage is the decoded table of a binary program image.
type BinaryImage struct {
	Version uint16
	Module  string
	Kernels []BinaryKernel
}

// BinaryKernel is one kernel entry of a binary image.
type BinaryKernel struct {
	Name        string
	Params      []ParamKind
	SharedMem   int
	Cooperative bool
}

// EncodeBinary serializes the kernel table of m into a binary image that
// LoadBinary accepts.
func EncodeBinary(m *Module) ([]byte, error) {
	var buf bytes.Buffer
	w := &binWriter{w: &buf}

	w.write(binaryMagic)
	w.write(uint16(binaryVersion))
	w.str(m.name)
	w.write(uint16(len(m.order)))
	for _, name := range m.order {
		def := m.kernels[name]
		w.str(def.Name)
		w.write(uint8(len(def.Params)))
		for _, p := range def.Params {
			w.write(uint8(p))
		}
		w.write(uint32(def.SharedMem))
		var flags uint8
		if def.Cooperative {
			flags |= flagCooperative
		}
		w.write(flags)
	}
	if w.err != nil {
		return nil, NewProgramError("EncodeBinary", "failed to encode image", w.err)
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	if err := binary.Write(&buf, binary.LittleEndian, sum); err != nil {
		return nil, NewProgramError("EncodeBinary", "failed to encode checksum", err)
	}
	return buf.Bytes(), nil
}

// DecodeBinary parses and checksums a binary image without resolving it
// against registered modules.
func DecodeBinary(image []byte) (*BinaryImage, error) {
	if len(image) < len(binaryMagic)+4 {
		return nil, NewProgramError("LoadBinary", fmt.Sprintf("image of %d bytes is truncated", len(image)), nil)
	}
	if !bytes.Equal(image[:len(binaryMagic)], binaryMagic[:]) {
		return nil, NewProgramError("LoadBinary", "not a GUDA binary image", nil)
	}
	body, trailer := image[:len(image)-4], image[len(image)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(trailer) {
		return nil, NewProgramError("LoadBinary", "image checksum mismatch", nil)
	}

	r := &binReader{r: bytes.NewReader(body[len(binaryMagic):])}
	img := &BinaryImage{}
	r.read(&img.Version)
	if r.err == nil && img.Version != binaryVersion {
		return nil, NewProgramError("LoadBinary", fmt.Sprintf("unsupported image version %d", img.Version), nil)
	}
	img.Module = r.str()

	var count uint16
	r.read(&count)
	for i := 0; i < int(count) && r.err == nil; i++ {
		var bk BinaryKernel
		bk.Name = r.str()
		var nparams uint8
		r.read(&nparams)
		raw := make([]uint8, nparams)
		r.read(raw)
		for _, p := range raw {
			bk.Params = append(bk.Params, ParamKind(p))
		}
		var shared uint32
		var flags uint8
		r.read(&shared)
		r.read(&flags)
		bk.SharedMem = int(shared)
		bk.Cooperative = flags&flagCooperative != 0
		img.Kernels = append(img.Kernels, bk)
	}
	if r.err != nil {
		return nil, NewProgramError("LoadBinary", "malformed kernel table", r.err)
	}
	return img, nil
}

// binWriter and binReader latch the first error so callers can check once.
type binWriter struct {
	w   io.Writer
	err error
}

func (w *binWriter) write(v interface{}) {
	if w.err == nil {
		w.err = binary.Write(w.w, binary.LittleEndian, v)
	}
}

func (w *binWriter) str(s string) {
	if len(s) > 0xFFFF {
		w.err = fmt.Errorf("name of %d bytes too long", len(s))
		return
	}
	w.write(uint16(len(s)))
	w.write([]byte(s))
}

type binReader struct {
	r   io.Reader
	err error
}

func (r *binReader) read(v interface{}) {
	if r.err == nil {
		r.err = binary.Read(r.r, binary.LittleEndian, v)
	}
}

func (r *binReader) str() string {
	var n uint16
	r.read(&n)
	if r.err != nil {
		return ""
	}
	b := make([]byte, n)
	r.read(b)
	return string(b)
}
