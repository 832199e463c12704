// Package archive unpacks uploaded zip archives into the folder and image
// structures the enrollment and marking flows consume. Extraction happens
// entirely in memory, nothing is written to disk.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Image is a single image file pulled out of an archive.
type Image struct {
	Name string
	Data []byte
}

// Folder groups the images found directly under one first-level directory
// of an archive. The label carries the directory name, which encodes the
// student identity during enrollment.
type Folder struct {
	Label  string
	Path   string // source directory on disk, empty for uploaded archives
	Images []Image
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// IsImageFile reports whether the file name carries a supported image
// extension.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(path.Ext(name))]
}

// ExtractFolders reads a zip archive laid out as one directory per student
// and returns the folders in archive order. Only images directly inside a
// student directory count; deeper nesting and loose files at the archive
// root are ignored. A student directory without a single usable image still
// produces a Folder so the caller can report it.
func ExtractFolders(zipData []byte) ([]Folder, error) {
	reader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	byLabel := make(map[string]*Folder)
	var order []string
	ensure := func(label string) *Folder {
		folder, ok := byLabel[label]
		if !ok {
			folder = &Folder{Label: label}
			byLabel[label] = folder
			order = append(order, label)
		}
		return folder
	}

	for _, file := range reader.File {
		name, err := entryPath(file.Name)
		if err != nil {
			return nil, err
		}
		if isJunk(name) {
			continue
		}

		parts := strings.Split(name, "/")
		if file.FileInfo().IsDir() {
			if len(parts) == 1 {
				ensure(name)
			}
			continue
		}
		if len(parts) != 2 {
			continue
		}

		folder := ensure(parts[0])
		if !IsImageFile(name) {
			continue
		}

		data, err := readEntry(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Name, err)
		}
		folder.Images = append(folder.Images, Image{Name: path.Base(name), Data: data})
	}

	folders := make([]Folder, 0, len(order))
	for _, label := range order {
		folders = append(folders, *byLabel[label])
	}
	return folders, nil
}

// ExtractImages flattens every image in the archive regardless of directory
// layout, for marking uploads that bundle several group photos.
func ExtractImages(zipData []byte) ([]Image, error) {
	reader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var images []Image
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name, err := entryPath(file.Name)
		if err != nil {
			return nil, err
		}
		if isJunk(name) || !IsImageFile(name) {
			continue
		}
		data, err := readEntry(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Name, err)
		}
		images = append(images, Image{Name: path.Base(name), Data: data})
	}
	return images, nil
}

// ReadFolders loads a directory from disk laid out the same way as an
// enrollment archive: one subdirectory per student with face photos inside.
// Deeper nesting, hidden directories and loose files at the top level are
// ignored. Folders come back in name order.
func ReadFolders(dir string) ([]Folder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var folders []Folder
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		files, err := os.ReadDir(sub)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", sub, err)
		}

		folder := Folder{Label: entry.Name(), Path: sub}
		for _, file := range files {
			if file.IsDir() || !IsImageFile(file.Name()) {
				continue
			}
			data, err := os.ReadFile(filepath.Join(sub, file.Name()))
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", filepath.Join(sub, file.Name()), err)
			}
			folder.Images = append(folder.Images, Image{Name: file.Name(), Data: data})
		}
		folders = append(folders, folder)
	}
	return folders, nil
}

// entryPath normalizes a zip entry name and rejects entries that try to
// escape the archive root.
func entryPath(name string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if strings.HasPrefix(cleaned, "/") || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("illegal entry path %q", name)
	}
	return cleaned, nil
}

// isJunk filters metadata entries that archiving tools sneak in, like
// __MACOSX resource forks and .DS_Store files.
func isJunk(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if part == "__MACOSX" || strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func readEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
