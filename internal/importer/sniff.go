package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cleared-dev/envelopes/internal/model"
)

// ErrUnknownFormat is returned when a file's source cannot be determined.
var ErrUnknownFormat = errors.New("unrecognized import file format")

// Sniff guesses the import source of a file from its extension and content.
func Sniff(name string, data []byte) (model.ImportSource, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return sniffJSON(data)
	case ".csv":
		return sniffCSV(data)
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, name)
}

func sniffJSON(data []byte) (model.ImportSource, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	if inner, ok := top["data"]; ok {
		var unwrapped map[string]json.RawMessage
		if err := json.Unmarshal(inner, &unwrapped); err == nil {
			top = unwrapped
		}
	}
	if _, ok := top["budget"]; ok {
		return model.SourceYNABJSON, nil
	}
	if has(top, "category_groups", "server_knowledge") {
		return model.SourceYNABJSON, nil
	}
	if has(top, "payees") {
		return model.SourceActualBudget, nil
	}

	var txns []map[string]json.RawMessage
	if raw, ok := top["transactions"]; ok && json.Unmarshal(raw, &txns) == nil && len(txns) > 0 {
		switch {
		case has(txns[0], "account_id"):
			return model.SourceYNABJSON, nil
		case has(txns[0], "account"):
			return model.SourceActualBudget, nil
		}
	}
	return "", ErrUnknownFormat
}

func has(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func sniffCSV(data []byte) (model.ImportSource, error) {
	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	switch {
	case slices.Contains(header, "Posting Date") && slices.Contains(header, "Details"):
		return model.SourceCSV, nil
	case slices.Contains(header, "Payee") &&
		(slices.Contains(header, "Amount") || slices.Contains(header, "Inflow") || slices.Contains(header, "Outflow")):
		return model.SourceYNABCSV, nil
	}
	return "", ErrUnknownFormat
}

// DirResult is the outcome for one file of a directory import.
type DirResult struct {
	File   string
	Source model.ImportSource
	Result Result
	Err    error
}

// ImportDir imports every .json and .csv file in dir, moving each
// successful file to dir/processed/. CSV files import into accountName,
// or into an account named after the file when accountName is empty.
// Failures are reported per file and do not stop the scan.
func (s *Service) ImportDir(ctx context.Context, ownerID, dir, accountName string) ([]DirResult, error) {
	files, err := Scan(dir)
	if err != nil {
		return nil, err
	}

	results := make([]DirResult, 0, len(files))
	for _, f := range files {
		res := DirResult{File: f.Name}
		res.Source, res.Result, res.Err = s.importFile(ctx, ownerID, f, accountName)
		if res.Err == nil {
			res.Err = MarkProcessed(dir, f.Name)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) importFile(ctx context.Context, ownerID string, f FileInfo, accountName string) (model.ImportSource, Result, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", Result{}, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	source, err := Sniff(f.Name, data)
	if err != nil {
		return "", Result{}, err
	}

	opts := Options{FileName: f.Name, AccountName: accountName}
	if opts.AccountName == "" {
		opts.AccountName = strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
	}
	res, err := s.Import(ctx, ownerID, source, bytes.NewReader(data), opts)
	return source, res, err
}
