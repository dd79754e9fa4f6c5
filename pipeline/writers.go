package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aluiziolira/go-bookshop-client/models"
)

var csvHeader = []string{"title", "author", "price", "condition", "description", "image_url", "source_url", "imported_at"}

// fileSink is a buffered output file shared by the file writers.
type fileSink struct {
	mu   sync.Mutex
	path string
	file *os.File
	buf  *bufio.Writer
	rows int
}

func openSink(path string) (*fileSink, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &fileSink{path: path, file: f, buf: bufio.NewWriter(f)}, nil
}

// append encodes each listing and flushes once per batch.
func (s *fileSink) append(listings []*models.Listing, encode func(*models.Listing) error, flush func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range listings {
		if err := encode(l); err != nil {
			return fmt.Errorf("encode listing %q: %w", l.SourceURL, err)
		}
		s.rows++
	}
	if err := flush(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return nil
}

func (s *fileSink) close(flush func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return s.file.Close()
}

func (s *fileSink) validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows == 0 {
		return fmt.Errorf("no listings written to %s", s.path)
	}
	return nil
}

// CSVWriter writes listings to CSV with a header row.
type CSVWriter struct {
	sink *fileSink
	csv  *csv.Writer
}

// NewCSVWriter creates filename (and its directory) and writes the header.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	sink, err := openSink(filename)
	if err != nil {
		return nil, err
	}
	cw := &CSVWriter{sink: sink, csv: csv.NewWriter(sink.buf)}
	if err := cw.csv.Write(csvHeader); err != nil {
		sink.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.flush(); err != nil {
		sink.file.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return cw, nil
}

func (cw *CSVWriter) Write(listings []*models.Listing) error {
	return cw.sink.append(listings, cw.encode, cw.flush)
}

func (cw *CSVWriter) Close() error {
	return cw.sink.close(cw.flush)
}

// Validate fails when only the header was written.
func (cw *CSVWriter) Validate() error {
	return cw.sink.validate()
}

func (cw *CSVWriter) encode(l *models.Listing) error {
	return cw.csv.Write([]string{
		l.Title,
		l.Author,
		l.Price,
		l.Condition,
		l.Description,
		l.ImageURL,
		l.SourceURL,
		l.ImportedAt.Format(time.RFC3339),
	})
}

func (cw *CSVWriter) flush() error {
	cw.csv.Flush()
	if err := cw.csv.Error(); err != nil {
		return err
	}
	return cw.sink.buf.Flush()
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	sink *fileSink
	enc  *json.Encoder
}

func NewJSONWriter(filename string) (*JSONWriter, error) {
	sink, err := openSink(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{sink: sink, enc: json.NewEncoder(sink.buf)}, nil
}

func (jw *JSONWriter) Write(listings []*models.Listing) error {
	return jw.sink.append(listings, func(l *models.Listing) error { return jw.enc.Encode(l) }, jw.sink.buf.Flush)
}

func (jw *JSONWriter) Close() error {
	return jw.sink.close(jw.sink.buf.Flush)
}

// Validate fails until at least one listing has been written.
func (jw *JSONWriter) Validate() error {
	return jw.sink.validate()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
