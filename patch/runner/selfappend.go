package runner

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/grafthq/graft/patch/fsx"
)

// envelopeTrailerLen is the fixed 16-byte trailer: an 8-byte little-endian
// archive length followed by the 8-byte magic constant.
const envelopeTrailerLen = 8 + len(fsx.SelfAppendMagic)

// NoAppendedDataError is returned by ReadSelfAppended when the trailing
// magic bytes don't match, meaning the file has no appended patch data.
type NoAppendedDataError struct{ Path string }

func (e *NoAppendedDataError) Error() string {
	return fmt.Sprintf("%s has no appended patch data (magic mismatch)", e.Path)
}
func (e *NoAppendedDataError) Is(other error) bool {
	_, ok := other.(*NoAppendedDataError)
	return ok
}

// WriteSelfAppended appends archiveBytes, its 8-byte little-endian length,
// and the magic trailer to the stub executable at stubPath, then sets the
// execute bit on Unix-family platforms.
func WriteSelfAppended(stubPath string, archiveBytes []byte) error {
	f, err := os.OpenFile(stubPath, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("opening stub %q: %w", stubPath, err)
	}
	defer f.Close()

	if _, err := f.Write(archiveBytes); err != nil {
		return fmt.Errorf("appending archive bytes: %w", err)
	}

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(archiveBytes)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("appending archive length: %w", err)
	}
	if _, err := f.Write([]byte(fsx.SelfAppendMagic)); err != nil {
		return fmt.Errorf("appending magic: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing stub: %w", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(stubPath)
		if err != nil {
			return fmt.Errorf("stat stub after appending: %w", err)
		}
		if err := os.Chmod(stubPath, info.Mode()|0o111); err != nil {
			return fmt.Errorf("setting execute bit: %w", err)
		}
	}
	return nil
}

// ReadSelfAppended seeks to the end of the file at execPath, validates the
// trailer's magic and length, and returns the archive bytes. It reads only
// the appended trailer, on every platform; the macOS resource layout is read
// separately by ReadDarwinResourceFallback.
func ReadSelfAppended(execPath string) ([]byte, error) {
	f, err := os.Open(execPath)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", execPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", execPath, err)
	}
	size := info.Size()
	if size < int64(envelopeTrailerLen) {
		return nil, &NoAppendedDataError{Path: execPath}
	}

	trailer := make([]byte, envelopeTrailerLen)
	if _, err := f.ReadAt(trailer, size-int64(envelopeTrailerLen)); err != nil {
		return nil, fmt.Errorf("reading trailer of %q: %w", execPath, err)
	}

	magic := trailer[8:]
	if !bytes.Equal(magic, []byte(fsx.SelfAppendMagic)) {
		return nil, &NoAppendedDataError{Path: execPath}
	}

	length := binary.LittleEndian.Uint64(trailer[:8])
	maxLen := uint64(size) - uint64(envelopeTrailerLen)
	if length == 0 || length > maxLen {
		return nil, fmt.Errorf("appended archive length %d is out of range (max %d)", length, maxLen)
	}

	archiveBytes := make([]byte, length)
	offset := size - int64(envelopeTrailerLen) - int64(length)
	if _, err := f.ReadAt(archiveBytes, offset); err != nil {
		return nil, fmt.Errorf("reading appended archive bytes: %w", err)
	}
	return archiveBytes, nil
}

// ReadDarwinResourceFallback looks for Contents/Resources/patch.data next
// to execPath, the macOS-specific layout that preserves code signatures by
// avoiding appending bytes directly to the signed Mach-O binary.
func ReadDarwinResourceFallback(execPath string) ([]byte, error) {
	resourcePath := filepath.Join(filepath.Dir(execPath), "Contents", "Resources", "patch.data")
	b, err := os.ReadFile(resourcePath)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", resourcePath, err)
	}
	return b, nil
}
