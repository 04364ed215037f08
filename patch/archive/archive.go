// Package archive packs a patch bundle directory into a single
// gzip-compressed tar stream, and unpacks it back, with member ordering that
// puts manifest.json first so a validator can read just the manifest
// without extracting the rest of the archive.
package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"
)

const manifestName = "manifest.json"

// subtrees lists the bundle subdirectories walked after manifest.json, in
// the fixed order spec.md §4.6 requires.
var subtrees = []string{"diffs", "files", "assets"}

// Pack walks bundleDir (manifest.json, then diffs/, files/, assets/,
// whichever are present) and returns the gzip-compressed tar bytes.
func Pack(bundleDir string) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	manifestPath := filepath.Join(bundleDir, manifestName)
	if err := addFile(tw, manifestPath, manifestName); err != nil {
		return nil, fmt.Errorf("packing %s: %w", manifestName, err)
	}

	for _, sub := range subtrees {
		subDir := filepath.Join(bundleDir, sub)
		if _, err := os.Stat(subDir); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat %q: %w", subDir, err)
		}
		if err := addTree(tw, subDir, sub); err != nil {
			return nil, fmt.Errorf("packing %s/: %w", sub, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar writer: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func addTree(tw *tar.Writer, dir, archivePrefix string) error {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		names = append(names, path)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, path := range names {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("filepath.Rel(%s, %s): %w", dir, path, err)
		}
		archiveName := archivePrefix + "/" + filepath.ToSlash(rel)
		if err := addFile(tw, path, archiveName); err != nil {
			return err
		}
	}
	return nil
}

func addFile(tw *tar.Writer, path, archiveName string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %q: %w", path, err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}

	hdr := &tar.Header{
		Name:    archiveName,
		Mode:    int64(info.Mode().Perm()),
		Size:    int64(len(contents)),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header for %q: %w", archiveName, err)
	}
	if _, err := tw.Write(contents); err != nil {
		return fmt.Errorf("writing tar content for %q: %w", archiveName, err)
	}
	return nil
}

// Unpack extracts compressed into dstDir, recreating its manifest.json and
// any diffs/, files/, assets/ subtrees. It performs no path-safety checks:
// it is always handed the output of Pack, or an already-validated bundle.
func Unpack(compressed []byte, dstDir string) error {
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		dst := filepath.Join(dstDir, filepath.FromSlash(hdr.Name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
			return fmt.Errorf("creating directory for %q: %w", hdr.Name, err)
		}
		f, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0o777)
		if err != nil {
			return fmt.Errorf("creating %q: %w", dst, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("writing %q: %w", dst, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %q: %w", dst, err)
		}
	}
	return nil
}

// PeekManifest streams just the first archive member (manifest.json, by
// construction always packed first) without extracting anything else to
// disk, powering a fast "what will this patcher do" read.
func PeekManifest(compressed []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	hdr, err := tr.Next()
	if err == io.EOF {
		return nil, fmt.Errorf("archive is empty, expected %s first", manifestName)
	}
	if err != nil {
		return nil, fmt.Errorf("reading first tar entry: %w", err)
	}
	if hdr.Name != manifestName {
		return nil, fmt.Errorf("first archive entry is %q, expected %s", hdr.Name, manifestName)
	}

	raw, err := io.ReadAll(tr)
	if err != nil {
		return nil, fmt.Errorf("reading %s contents: %w", manifestName, err)
	}
	return raw, nil
}
