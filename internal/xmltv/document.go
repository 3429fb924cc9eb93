package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const header = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

// Parse decodes an XMLTV document from r.
func Parse(r io.Reader) (*TV, error) {
	var tv TV
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&tv); err != nil {
		return nil, fmt.Errorf("parse xmltv: %w", err)
	}
	return &tv, nil
}

// Load reads an XMLTV document from a file.
func Load(path string) (*TV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open guide: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Marshal renders the document with its XML declaration and tab indentation.
func Marshal(tv *TV) ([]byte, error) {
	body, err := xml.MarshalIndent(tv, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("marshal xmltv: %w", err)
	}
	return append([]byte(header), append(body, '\n')...), nil
}

// Write serializes the document to path. The file is written next to its
// destination and renamed into place so a failed run never leaves a
// truncated guide behind.
func Write(tv *TV, path string) error {
	data, err := Marshal(tv)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write guide: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write guide: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write guide: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write guide: %w", err)
	}
	return nil
}
