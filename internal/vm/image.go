package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// Image is a serialized program: its compiled modules and the name of the
// module to run. Native modules are not part of an image; the host supplies
// them when the image is loaded.
type Image struct {
	Modules []*Module `cbor:"1,keyasint"`
	Entry   string    `cbor:"2,keyasint"`

	// Resources holds embedded static files keyed by relative path.
	Resources map[string][]byte `cbor:"3,keyasint,omitempty"`
}

// imageVersion constants
const (
	imageVersionV1 byte = 0x01
)

var imageMagic = [4]byte{'E', 'L', 'A', 'I'}

// selfContainedMagic is the footer magic for self-contained binaries
var selfContainedMagic = [4]byte{'E', 'L', 'A', 'S'}

// selfContainedFooterSize is the size of the self-contained footer:
// 8 bytes (image size) + 4 bytes (magic)
const selfContainedFooterSize = 12

var encMode, decMode = func() (cbor.EncMode, cbor.DecMode) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{MaxArrayElements: 1 << 24, MaxMapPairs: 1 << 20}.DecMode()
	if err != nil {
		panic(err)
	}
	return enc, dec
}()

// Serialize converts an image to binary format.
// Format:
// - Magic number (4 bytes): "ELAI"
// - Version (1 byte): 0x01
// - Canonical CBOR image data
func (img *Image) Serialize() ([]byte, error) {
	for _, m := range img.Modules {
		if m.IsNative() {
			return nil, fmt.Errorf("native module %s cannot be serialized", m.Name)
		}
	}

	buf := new(bytes.Buffer)
	buf.Write(imageMagic[:])
	buf.WriteByte(imageVersionV1)

	if err := encMode.NewEncoder(buf).Encode(img); err != nil {
		return nil, fmt.Errorf("image encoding failed: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeImage reads an image written by Serialize.
func DeserializeImage(data []byte) (*Image, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("image data too short")
	}
	if !bytes.Equal(data[:4], imageMagic[:]) {
		return nil, fmt.Errorf("invalid magic number, expected ELAI")
	}

	version := data[4]
	switch version {
	case imageVersionV1:
		var img Image
		if err := decMode.Unmarshal(data[5:], &img); err != nil {
			return nil, fmt.Errorf("image decoding failed: %w", err)
		}
		if err := img.Validate(); err != nil {
			return nil, fmt.Errorf("image validation failed: %w", err)
		}
		return &img, nil
	default:
		return nil, fmt.Errorf("unsupported image version: %d (this build supports version %d)", version, imageVersionV1)
	}
}

// Validate checks the structural integrity of a deserialized image.
func (img *Image) Validate() error {
	if len(img.Modules) == 0 {
		return fmt.Errorf("image has no modules")
	}
	for _, m := range img.Modules {
		if m == nil {
			return fmt.Errorf("image has a nil module")
		}
		if len(m.Code) == 0 {
			return fmt.Errorf("module %s has empty bytecode", m.Name)
		}
		if err := validateHeader(m); err != nil {
			return err
		}
	}
	if !slices.ContainsFunc(img.Modules, func(m *Module) bool { return m.Name == img.Entry }) {
		return fmt.Errorf("entry module %q not in image", img.Entry)
	}
	return nil
}

// Assemble links the image's modules together with the given native
// modules and returns the assembly and the entry handle.
func (img *Image) Assemble(natives ...*Module) (*Assembly, int, error) {
	asm := NewAssembly()
	for _, m := range natives {
		if _, err := asm.Add(m); err != nil {
			return nil, -1, err
		}
	}
	for _, m := range img.Modules {
		if _, err := asm.Add(m); err != nil {
			return nil, -1, err
		}
	}
	if err := asm.Link(); err != nil {
		return nil, -1, err
	}
	entry, _ := asm.Lookup(img.Entry)
	return asm, entry, nil
}

// PackSelfContained creates a self-contained binary by appending image data
// to the host binary with a footer.
// Output format: [hostBinary][imageData][8-byte imageSize LE][4-byte "ELAS"]
func PackSelfContained(hostBinary []byte, img *Image) ([]byte, error) {
	data, err := img.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize image: %w", err)
	}

	out := make([]byte, 0, len(hostBinary)+len(data)+selfContainedFooterSize)
	out = append(out, hostBinary...)
	out = append(out, data...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(data)))
	out = append(out, selfContainedMagic[:]...)
	return out, nil
}

// ExtractEmbeddedImage reads a self-contained binary and extracts the
// embedded image, if present. Returns nil, nil if there is none.
func ExtractEmbeddedImage(binaryData []byte) (*Image, error) {
	size := len(binaryData)
	if size < selfContainedFooterSize {
		return nil, nil
	}
	if !bytes.Equal(binaryData[size-4:], selfContainedMagic[:]) {
		return nil, nil
	}

	footerStart := size - selfContainedFooterSize
	imageSize := binary.LittleEndian.Uint64(binaryData[footerStart : footerStart+8])
	if imageSize == 0 || imageSize > uint64(footerStart) {
		return nil, fmt.Errorf("invalid embedded image size: %d", imageSize)
	}

	start := footerStart - int(imageSize)
	return DeserializeImage(binaryData[start:footerStart])
}
