package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/maane-ai/maane/internal/models"
)

var (
	// ErrNoSnapshot means no snapshot file exists at the given path.
	ErrNoSnapshot = errors.New("no snapshot file")
	// ErrDimensionMismatch means the file was written with a different
	// embedding dimension than the one configured.
	ErrDimensionMismatch = errors.New("snapshot dimension mismatch")
)

// Save writes the snapshot to path atomically. Format: dimension (4), docID
// (4+bytes), n (4), then per entry: index (4), page (4), start (4), end (4),
// text (4+bytes), vector (dimension*4 bytes). All little-endian.
func (s *Snapshot) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(s.Dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := writeString(f, s.DocumentID); err != nil {
		return fmt.Errorf("write document id: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(s.Entries))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, e := range s.Entries {
		header := []uint32{uint32(e.Chunk.Index), uint32(e.Chunk.Page), uint32(e.Chunk.Start), uint32(e.Chunk.End)}
		for _, v := range header {
			if err := binary.Write(f, binary.LittleEndian, v); err != nil {
				return fmt.Errorf("write chunk header: %w", err)
			}
		}
		if err := writeString(f, e.Chunk.Text); err != nil {
			return fmt.Errorf("write chunk text: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(e.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot from path. Returns ErrNoSnapshot when the
// file does not exist and ErrDimensionMismatch when it was written with a
// different embedding dimension.
func LoadSnapshot(path string, dimensions int) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	var dim uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != dimensions {
		return nil, fmt.Errorf("%w: file has %d, configured %d", ErrDimensionMismatch, dim, dimensions)
	}
	docID, err := readString(f)
	if err != nil {
		return nil, fmt.Errorf("read document id: %w", err)
	}
	var n uint32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	entries := make([]Entry, 0, n)
	vecBuf := make([]byte, dimensions*4)
	for i := uint32(0); i < n; i++ {
		var header [4]uint32
		for j := range header {
			if err := binary.Read(f, binary.LittleEndian, &header[j]); err != nil {
				return nil, fmt.Errorf("read chunk header: %w", err)
			}
		}
		text, err := readString(f)
		if err != nil {
			return nil, fmt.Errorf("read chunk text: %w", err)
		}
		if _, err := io.ReadFull(f, vecBuf); err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		entries = append(entries, Entry{
			Chunk: models.Chunk{
				Index: int(header[0]),
				Page:  int(header[1]),
				Start: int(header[2]),
				End:   int(header[3]),
				Text:  text,
			},
			Vector: bytesToFloat32Slice(vecBuf, dimensions),
		})
	}
	return &Snapshot{DocumentID: docID, Dimensions: dimensions, Entries: entries}, nil
}

func writeString(f *os.File, s string) error {
	b := []byte(s)
	if err := binary.Write(f, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := f.Write(b)
	return err
}

func readString(f *os.File) (string, error) {
	var n uint32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(f, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(v []float32) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func bytesToFloat32Slice(b []byte, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
