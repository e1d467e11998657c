// Package dropzone captures a statement file from drag-and-drop or the
// file picker and hands it to a selection callback.
package dropzone

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Accepted MIME types on the drop path.
const (
	MIMECSV  = "text/csv"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// PickerAccept is the extension list offered by the file picker.
const PickerAccept = ".csv,.xlsx"

// File is a user-selected file. It is never mutated after creation.
type File struct {
	Name string
	Type string // MIME type as reported by the source
	Size int64
	Open func() (io.ReadCloser, error)
}

// Option configures a Dropzone.
type Option func(*Dropzone)

// WithStrictPicker applies the drop MIME filter to picker selections too.
func WithStrictPicker() Option {
	return func(d *Dropzone) { d.strictPicker = true }
}

// Dropzone holds the cosmetic dragging flag and routes accepted files
// to the callback.
type Dropzone struct {
	mu           sync.Mutex
	dragging     bool
	strictPicker bool
	onFileSelect func(File)
}

// New creates a dropzone reporting selections to onFileSelect.
func New(onFileSelect func(File), opts ...Option) *Dropzone {
	d := &Dropzone{onFileSelect: onFileSelect}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dropzone) DragOver() { d.setDragging(true) }

func (d *Dropzone) DragLeave() { d.setDragging(false) }

// Dragging reports whether a drag is currently hovering.
func (d *Dropzone) Dragging() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dragging
}

func (d *Dropzone) setDragging(v bool) {
	d.mu.Lock()
	d.dragging = v
	d.mu.Unlock()
}

// Drop handles a drop event. Only the first file is considered, and only
// CSV or XLSX MIME types reach the callback. Rejected drops are ignored.
func (d *Dropzone) Drop(files []File) bool {
	d.setDragging(false)
	if len(files) == 0 {
		return false
	}
	f := files[0]
	if !AcceptsDrop(f.Type) {
		log.Debug().Str("file", f.Name).Str("type", f.Type).Msg("Dropped file ignored")
		return false
	}
	d.selectFile(f)
	return true
}

// Pick handles a picker selection. Without WithStrictPicker any file type
// is accepted.
func (d *Dropzone) Pick(files []File) bool {
	if len(files) == 0 {
		return false
	}
	f := files[0]
	if !AcceptsDrop(f.Type) {
		if d.strictPicker {
			log.Debug().Str("file", f.Name).Str("type", f.Type).Msg("Picked file ignored")
			return false
		}
		log.Debug().Str("file", f.Name).Str("type", f.Type).Msg("Picker accepted a non-spreadsheet file")
	}
	d.selectFile(f)
	return true
}

func (d *Dropzone) selectFile(f File) {
	if d.onFileSelect != nil {
		d.onFileSelect(f)
	}
}

// AcceptsDrop reports whether mimeType passes the drop filter.
func AcceptsDrop(mimeType string) bool {
	return mimeType == MIMECSV || mimeType == MIMEXLSX
}

// TypeForName returns the MIME type implied by a file extension, or "".
func TypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return MIMECSV
	case ".xlsx":
		return MIMEXLSX
	}
	return ""
}

// FileFromPath builds a File backed by a file on disk.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name: info.Name(),
		Type: TypeForName(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FileFromBytes builds an in-memory File.
func FileFromBytes(name, mimeType string, data []byte) File {
	return File{
		Name: name,
		Type: mimeType,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
