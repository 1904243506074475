package fanout

import (
	"fmt"
	"io"
	"os"
)

// Chunker tails a growing file, returning only the bytes written since the
// previous read. The capture worker drives it on an interval while the
// recording grows and flushes the remainder when the capture ends.
type Chunker struct {
	path     string
	offset   int64
	maxBytes int
}

func NewChunker(path string, maxBytes int) *Chunker {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return &Chunker{path: path, maxBytes: maxBytes}
}

// Next returns up to maxBytes of unread data. A nil slice means no new
// bytes exist. A file that does not exist yet also means no new bytes; the
// engine may not have created it on the first ticks.
func (c *Chunker) Next() ([]byte, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", c.path, err)
	}
	if info.Size() <= c.offset {
		return nil, nil
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", c.path, err)
	}
	defer f.Close()

	if _, err := f.Seek(c.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek %s: %w", c.path, err)
	}

	size := info.Size() - c.offset
	if size > int64(c.maxBytes) {
		size = int64(c.maxBytes)
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read %s: %w", c.path, err)
	}

	c.offset += int64(n)
	return buf[:n], nil
}

// Offset returns how many bytes have been consumed so far.
func (c *Chunker) Offset() int64 {
	return c.offset
}
