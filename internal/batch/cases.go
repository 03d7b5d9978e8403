package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// caseFile is the YAML document form: either a bare list or a "cases" key.
type caseFile struct {
	Cases []Case `yaml:"cases"`
}

// LoadCases reads a case file. Files ending in .jsonl hold one JSON case per
// line; everything else is parsed as YAML.
func LoadCases(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening case file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return ReadJSONL(f)
	}
	return ReadYAML(f)
}

// ReadJSONL parses one case per non-blank line.
func ReadJSONL(r io.Reader) ([]Case, error) {
	var cases []Case
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var c Case
		if err := json.Unmarshal(text, &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cases = append(cases, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading cases: %w", err)
	}
	return cases, nil
}

// ReadYAML parses a YAML list of cases, or a mapping with a "cases" list.
func ReadYAML(r io.Reader) ([]Case, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading cases: %w", err)
	}

	var list []Case
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc caseFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing cases: %w", err)
	}
	return doc.Cases, nil
}
