// Package parser decodes raw clickstream input files into candidate
// records. A file is either line-delimited JSON objects or a single
// JSON array of objects. Decode failures are isolated per record and
// never abort the run.
package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/internal/errors"
	"github.com/bhargavirodda1278-pixel/clickstream-pipeline1/pkg/types"
)

// Failure describes one payload that could not be decoded. The
// original bytes are retained for the quarantine sink.
type Failure struct {
	Source  string
	Offset  int64
	Payload []byte
	Err     error
}

// Error returns the failure as a structured parse error.
func (f Failure) Error() *errors.PipelineError {
	return errors.NewParseError(
		fmt.Sprintf("malformed payload in %s at offset %d", f.Source, f.Offset),
		f.Err,
	)
}

// ParseLocalFile decodes a downloaded source file. source is the
// object path the file came from, used to tag records and failures.
func ParseLocalFile(source, localPath string) ([]types.RawRecord, []Failure, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, nil, errors.NewStorageError(errors.CodeSourceUnreadable,
			fmt.Sprintf("cannot open source file %s", source), err)
	}
	defer f.Close()

	return Parse(source, f)
}

// Parse decodes all records from r. The first non-whitespace byte
// decides the file form: '[' means one JSON array, anything else is
// treated as line-delimited objects.
func Parse(source string, r io.Reader) ([]types.RawRecord, []Failure, error) {
	br := bufio.NewReader(r)

	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errors.NewStorageError(errors.CodeSourceUnreadable,
			fmt.Sprintf("cannot read source file %s", source), err)
	}

	if first == '[' {
		return parseArray(source, br)
	}
	return parseLines(source, br)
}

// parseArray decodes a whole-file JSON array of objects.
func parseArray(source string, r io.Reader) ([]types.RawRecord, []Failure, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.NewStorageError(errors.CodeSourceUnreadable,
			fmt.Sprintf("cannot read source file %s", source), err)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		// The whole file is one corrupt payload.
		return nil, []Failure{{Source: source, Offset: 0, Payload: data, Err: err}}, nil
	}

	var records []types.RawRecord
	var failures []Failure
	for i, element := range elements {
		fields, err := decodeObject(element)
		if err != nil {
			failures = append(failures, Failure{
				Source:  source,
				Offset:  0,
				Payload: append([]byte(nil), element...),
				Err:     err,
			})
			continue
		}
		records = append(records, types.RawRecord{
			Fields: fields,
			Source: source,
			Index:  i,
		})
	}
	return records, failures, nil
}

// scanLinesKeepCR splits on '\n' like bufio.ScanLines but keeps a
// trailing '\r' in the token, so the token length plus the newline is
// exactly the number of source bytes the line consumed.
func scanLinesKeepCR(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parseLines decodes line-delimited JSON, tracking the byte offset of
// each line so corrupt payloads can be located in the source file.
// Offsets stay exact on CRLF input because the splitter never strips
// the '\r'.
func parseLines(source string, r io.Reader) ([]types.RawRecord, []Failure, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	scanner.Split(scanLinesKeepCR)

	var records []types.RawRecord
	var failures []Failure
	var offset int64
	index := 0

	for scanner.Scan() {
		line := scanner.Bytes()
		lineOffset := offset
		offset += int64(len(line)) + 1 // newline

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}

		fields, err := decodeObject(trimmed)
		if err != nil {
			failures = append(failures, Failure{
				Source:  source,
				Offset:  lineOffset,
				Payload: append([]byte(nil), trimmed...),
				Err:     err,
			})
			index++
			continue
		}

		records = append(records, types.RawRecord{
			Fields: fields,
			Source: source,
			Offset: lineOffset,
			Index:  index,
		})
		index++
	}
	if err := scanner.Err(); err != nil {
		return records, failures, errors.NewStorageError(errors.CodeSourceUnreadable,
			fmt.Sprintf("cannot read source file %s", source), err)
	}

	return records, failures, nil
}

// decodeObject decodes one JSON object into a field bag. Numbers stay
// json.Number so the validator can distinguish integers from floats.
func decodeObject(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("payload is JSON null, not an object")
	}

	// Reject trailing garbage after the object.
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON object")
	}
	return fields, nil
}

// peekNonSpace returns the first byte that is not JSON whitespace
// without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}
