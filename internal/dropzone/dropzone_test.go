package dropzone

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	files []File
}

func (r *recorder) onSelect(f File) { r.files = append(r.files, f) }

func TestDrop_AcceptsSpreadsheetTypes(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		accepted bool
	}{
		{"csv", MIMECSV, true},
		{"xlsx", MIMEXLSX, true},
		{"png", "image/png", false},
		{"empty type", "", false},
		{"legacy excel", "application/vnd.ms-excel", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			dz := New(rec.onSelect)

			var ok bool
			assert.NotPanics(t, func() {
				ok = dz.Drop([]File{FileFromBytes("statement", tt.mimeType, []byte("a,b"))})
			})

			assert.Equal(t, tt.accepted, ok)
			if tt.accepted {
				require.Len(t, rec.files, 1)
				assert.Equal(t, tt.mimeType, rec.files[0].Type)
			} else {
				assert.Empty(t, rec.files)
			}
		})
	}
}

func TestDrop_OnlyFirstFileConsidered(t *testing.T) {
	rec := &recorder{}
	dz := New(rec.onSelect)

	ok := dz.Drop([]File{
		FileFromBytes("photo.png", "image/png", nil),
		FileFromBytes("q4.csv", MIMECSV, nil),
	})

	assert.False(t, ok)
	assert.Empty(t, rec.files)
}

func TestDrop_NoFiles(t *testing.T) {
	rec := &recorder{}
	dz := New(rec.onSelect)
	assert.False(t, dz.Drop(nil))
	assert.False(t, dz.Pick(nil))
	assert.Empty(t, rec.files)
}

func TestPick_AcceptsAnyTypeByDefault(t *testing.T) {
	rec := &recorder{}
	dz := New(rec.onSelect)

	assert.True(t, dz.Pick([]File{FileFromBytes("photo.png", "image/png", nil)}))
	assert.True(t, dz.Pick([]File{FileFromBytes("q4.csv", MIMECSV, nil)}))

	require.Len(t, rec.files, 2)
	assert.Equal(t, "photo.png", rec.files[0].Name)
}

func TestPick_StrictPickerFilters(t *testing.T) {
	rec := &recorder{}
	dz := New(rec.onSelect, WithStrictPicker())

	assert.False(t, dz.Pick([]File{FileFromBytes("photo.png", "image/png", nil)}))
	assert.True(t, dz.Pick([]File{FileFromBytes("q4.xlsx", MIMEXLSX, nil)}))
	require.Len(t, rec.files, 1)
	assert.Equal(t, "q4.xlsx", rec.files[0].Name)
}

func TestDragging(t *testing.T) {
	dz := New(nil)
	assert.False(t, dz.Dragging())

	dz.DragOver()
	assert.True(t, dz.Dragging())

	dz.DragLeave()
	assert.False(t, dz.Dragging())

	dz.DragOver()
	dz.Drop([]File{FileFromBytes("x.png", "image/png", nil)})
	assert.False(t, dz.Dragging(), "drop clears the dragging flag even when rejected")
}

func TestFileFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ACME_2024.CSV")
	require.NoError(t, os.WriteFile(path, []byte("Quarter,Revenue\nQ1 2024,100\n"), 0644))

	f, err := FileFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "ACME_2024.CSV", f.Name)
	assert.Equal(t, MIMECSV, f.Type)
	assert.Equal(t, int64(28), f.Size)

	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Revenue")

	_, err = FileFromPath(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
	_, err = FileFromPath(dir)
	assert.Error(t, err)
}

func TestTypeForName(t *testing.T) {
	assert.Equal(t, MIMECSV, TypeForName("a.csv"))
	assert.Equal(t, MIMEXLSX, TypeForName("b.XLSX"))
	assert.Equal(t, "", TypeForName("c.pdf"))
}
