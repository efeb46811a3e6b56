package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
)

// sample is one message to classify. Stage is meaningful only when Labelled.
type sample struct {
	Text     string
	Stage    int
	Labelled bool
}

// parseEncoding maps a flag value to a decoder. UTF-8 input may carry a BOM,
// as spreadsheet exports often do.
func parseEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "")) {
	case "", "utf8":
		return unicode.UTF8BOM, nil
	case "big5":
		return traditionalchinese.Big5, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q (want utf-8 or big5)", name)
	}
}

func readSamplesFile(path string, enc encoding.Encoding) ([]sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := transform.NewReader(f, enc.NewDecoder())
	var samples []sample
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		samples, err = readCSV(r)
	} else {
		samples, err = readLines(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// readCSV reads text,stage rows. The stage column is optional per row. A
// first row whose stage column is not a number is treated as a header.
func readCSV(r io.Reader) ([]sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var samples []sample
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return samples, nil
		}
		if err != nil {
			return nil, err
		}

		text := strings.TrimSpace(rec[0])
		s := sample{Text: text}
		if len(rec) > 1 && strings.TrimSpace(rec[1]) != "" {
			stage, err := strconv.Atoi(strings.TrimSpace(rec[1]))
			if err != nil {
				if row == 1 {
					continue
				}
				return nil, fmt.Errorf("row %d: invalid stage %q", row, rec[1])
			}
			if stage < detection.MinStage || stage > detection.MaxStage {
				return nil, fmt.Errorf("row %d: stage %d out of range %d..%d", row, stage, detection.MinStage, detection.MaxStage)
			}
			s.Stage, s.Labelled = stage, true
		}
		if text == "" {
			continue
		}
		samples = append(samples, s)
	}
}

func readLines(r io.Reader) ([]sample, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var samples []sample
	for sc.Scan() {
		if text := strings.TrimSpace(sc.Text()); text != "" {
			samples = append(samples, sample{Text: text})
		}
	}
	return samples, sc.Err()
}
