package csv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jszwec/csvutil"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/MikeWKI/WKI-WIP/internal/models"
	"github.com/MikeWKI/WKI-WIP/internal/normalize"
)

// ErrEncoding is returned when the source bytes are not valid in the
// requested encoding. It aborts the whole run.
var ErrEncoding = errors.New("invalid source encoding")

// Supported source encodings.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
)

type Parser struct {
	filename string
	encoding string
}

// Result is the outcome of one parse. Skipped counts rows dropped for a
// blank key cell.
type Result struct {
	Orders  []models.Order
	Skipped int
}

func NewParser(filename string) *Parser {
	return &Parser{filename: filename, encoding: EncodingUTF8}
}

// WithEncoding selects the source encoding; an empty value keeps UTF-8.
func (p *Parser) WithEncoding(encoding string) *Parser {
	if encoding != "" {
		p.encoding = strings.ToLower(encoding)
	}
	return p
}

// ParseHeaderless reads a sheet export without a header row. Cells are bound
// positionally to normalize.Columns.
func (p *Parser) ParseHeaderless() (*Result, error) {
	reader, err := p.open()
	if err != nil {
		return nil, err
	}
	return decode(reader, bindingHeader(normalize.Columns))
}

// ParseWithHeader reads a sheet export whose first row names the columns.
func (p *Parser) ParseWithHeader() (*Result, error) {
	reader, err := p.open()
	if err != nil {
		return nil, err
	}

	header, err := reader.Read()
	if err == io.EOF {
		return &Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	return decode(reader, bindingHeader(header))
}

func (p *Parser) open() (*csv.Reader, error) {
	raw, err := os.ReadFile(p.filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}

	text, err := decodeText(raw, p.encoding)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.filename, err)
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader, nil
}

func decodeText(raw []byte, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingUTF8:
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("%w: not valid UTF-8", ErrEncoding)
		}
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return out, nil
	case EncodingWindows1252:
		out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrEncoding, encoding)
	}
}

// bindingHeader trims header text so it can match the csv tags on
// models.Order, and gives blank or repeated headers unique placeholder names
// so they are simply ignored.
func bindingHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			h = fmt.Sprintf("_column_%d", i)
		}
		seen[h] = true
		out[i] = h
	}
	return out
}

func decode(reader *csv.Reader, header []string) (*Result, error) {
	dec, err := csvutil.NewDecoder(&paddedReader{r: reader, width: len(header)}, header...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder: %w", err)
	}

	result := &Result{}
	for {
		var o models.Order
		if err := dec.Decode(&o); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode CSV: %w", err)
		}

		o = normalize.Normalize(o)
		if o.Customer == "" {
			result.Skipped++
			continue
		}
		result.Orders = append(result.Orders, o)
	}
	return result, nil
}

// paddedReader reshapes every record to exactly width cells so ragged
// exports never trip csvutil's field count check.
type paddedReader struct {
	r     *csv.Reader
	width int
}

func (p *paddedReader) Read() ([]string, error) {
	record, err := p.r.Read()
	if err != nil {
		return nil, err
	}
	if len(record) == p.width {
		return record, nil
	}
	out := make([]string, p.width)
	copy(out, record)
	return out, nil
}
