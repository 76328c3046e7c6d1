package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xV8/orderbuddy-main/internal/model"
)

// Printer is a printer this agent serves over the websocket channel.
type Printer struct {
	model.PrinterInfo
	IsEnabled bool   `json:"isEnabled"`
	AgentKey  string `json:"agent_key,omitempty"` // Assigned by server
}

func LoadPrinters(printersFile string) ([]Printer, error) {
	data, err := os.ReadFile(printersFile)
	if errors.Is(err, os.ErrNotExist) {
		return []Printer{}, nil
	}
	if err != nil {
		return nil, err
	}
	var printers []Printer
	if err := json.Unmarshal(data, &printers); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", printersFile, err)
	}
	return printers, nil
}

// SavePrinters writes printers to the file. Entries are keyed by address;
// a printer given here replaces the stored one with the same address.
func SavePrinters(printersFile string, printers []Printer) error {
	if err := os.MkdirAll(filepath.Dir(printersFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	existing, err := LoadPrinters(printersFile)
	if err != nil {
		return fmt.Errorf("failed to read existing printers: %w", err)
	}

	index := make(map[string]int, len(existing))
	for i, p := range existing {
		index[p.Address()] = i
	}
	for _, p := range printers {
		if i, ok := index[p.Address()]; ok {
			existing[i] = p
			continue
		}
		index[p.Address()] = len(existing)
		existing = append(existing, p)
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(printersFile, data, 0644)
}
