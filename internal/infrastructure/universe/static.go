// Package universe provides the tracked-symbol collaborator. The universe is
// fixed per process: config symbols, optionally enriched with company names
// from an exchange master list CSV (EQUITY_L-style: SYMBOL, NAME OF COMPANY).
package universe

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"AnalystIntel/internal/config"
	"AnalystIntel/internal/ports"
)

// StaticUniverse is an immutable symbol set resolved at startup.
type StaticUniverse struct {
	symbols []string
	names   map[string]string
}

var _ ports.Universe = (*StaticUniverse)(nil)

// Load builds the universe from configuration, reading the master list when
// one is configured. Symbols are upper-cased and deduplicated, preserving
// config order.
func Load(cfg config.UniverseConfig) (*StaticUniverse, error) {
	names := map[string]string{}
	if cfg.MasterListPath != "" {
		f, err := os.Open(cfg.MasterListPath)
		if err != nil {
			return nil, fmt.Errorf("open master list: %w", err)
		}
		defer f.Close()

		names, err = parseMasterList(f)
		if err != nil {
			return nil, fmt.Errorf("parse master list %s: %w", cfg.MasterListPath, err)
		}
	}

	seen := map[string]struct{}{}
	symbols := make([]string, 0, len(cfg.Symbols))
	for _, raw := range cfg.Symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}

	return &StaticUniverse{symbols: symbols, names: names}, nil
}

// TrackedSymbols returns the fixed symbol set.
func (u *StaticUniverse) TrackedSymbols(context.Context) ([]string, error) {
	out := make([]string, len(u.symbols))
	copy(out, u.symbols)
	return out, nil
}

// CompanyName resolves a symbol to its listed company name, or "" when the
// master list does not know it.
func (u *StaticUniverse) CompanyName(symbol string) string {
	return u.names[strings.ToUpper(strings.TrimSpace(symbol))]
}

// parseMasterList reads an exchange equity CSV. Header names carry stray
// whitespace in the published file, so columns are matched after trimming.
func parseMasterList(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	symbolIdx, nameIdx := -1, -1
	for i, col := range header {
		switch strings.ToUpper(strings.TrimSpace(col)) {
		case "SYMBOL":
			symbolIdx = i
		case "NAME OF COMPANY":
			nameIdx = i
		}
	}
	if symbolIdx < 0 || nameIdx < 0 {
		return nil, fmt.Errorf("missing SYMBOL or NAME OF COMPANY column")
	}

	names := map[string]string{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if symbolIdx >= len(row) || nameIdx >= len(row) {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(row[symbolIdx]))
		name := strings.TrimSpace(row[nameIdx])
		if symbol != "" && name != "" {
			names[symbol] = name
		}
	}
	return names, nil
}
