// Package imageio decodes scans with their full sample depth and reads the
// scanner resolution stored in TIFF headers.
package imageio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"
)

// Load decodes a scan keeping its bit depth and channel count. The caller
// owns the returned Mat.
func Load(path string) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.NewMat(), err
	}
	m := gocv.IMRead(path, gocv.IMReadUnchanged)
	if m.Empty() {
		m.Close()
		return gocv.NewMat(), fmt.Errorf("failed to decode %s", path)
	}
	return m, nil
}

// ResolutionFromTIFF returns the horizontal resolution recorded in a TIFF
// file, in dots per inch.
func ResolutionFromTIFF(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return readTIFFResolution(file)
}

func readTIFFResolution(r io.ReadSeeker) (float64, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, err
	}

	var byteOrder binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		byteOrder = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		byteOrder = binary.BigEndian
	default:
		return 0, fmt.Errorf("not a valid TIFF file")
	}

	if _, err := r.Seek(int64(byteOrder.Uint32(header[4:8])), io.SeekStart); err != nil {
		return 0, err
	}
	var numEntries uint16
	if err := binary.Read(r, byteOrder, &numEntries); err != nil {
		return 0, err
	}

	var xRes, yRes float64
	var resUnit uint16 = 2 // Inches unless told otherwise

	entry := make([]byte, 12)
	for i := uint16(0); i < numEntries; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return 0, err
		}
		tag := byteOrder.Uint16(entry[0:2])
		fieldType := byteOrder.Uint16(entry[2:4])

		switch tag {
		case 282, 283: // XResolution, YResolution
			if fieldType != 5 { // RATIONAL
				continue
			}
			v, err := readRational(r, int64(byteOrder.Uint32(entry[8:12])), byteOrder)
			if err != nil {
				return 0, err
			}
			if tag == 282 {
				xRes = v
			} else {
				yRes = v
			}
		case 296: // ResolutionUnit
			if fieldType == 3 { // SHORT, stored left-justified
				resUnit = byteOrder.Uint16(entry[8:10])
			}
		}
	}

	dpi := xRes
	if dpi == 0 {
		dpi = yRes
	}
	if dpi == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}
	if resUnit == 3 {
		dpi *= 2.54
	}
	return dpi, nil
}

// readRational reads two uint32s at offset and restores the read position.
func readRational(r io.ReadSeeker, offset int64, byteOrder binary.ByteOrder) (float64, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	defer r.Seek(pos, io.SeekStart)

	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	var num, denom uint32
	if err := binary.Read(r, byteOrder, &num); err != nil {
		return 0, err
	}
	if err := binary.Read(r, byteOrder, &denom); err != nil {
		return 0, err
	}
	if denom == 0 {
		return 0, nil
	}
	return float64(num) / float64(denom), nil
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg", ".bmp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// IsTIFF reports whether path has a TIFF extension.
func IsTIFF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}

// Collect expands the arguments into a sorted list of image files.
// Directories contribute their direct children with supported extensions.
func Collect(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && IsSupportedFormat(e.Name()) {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
