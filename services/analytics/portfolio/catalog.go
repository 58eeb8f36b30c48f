// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package portfolio

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogSize is the number of canonical portfolios.
const CatalogSize = 10

// maxNameLength matches the portfolios.name column.
const maxNameLength = 100

// CatalogEntry is one canonical portfolio.
type CatalogEntry struct {
	Name  string `yaml:"name"`
	Short string `yaml:"short"`
}

// Catalog is the ordered canonical portfolio list. Order decides the ids
// assigned on a fresh store.
type Catalog struct {
	Portfolios []CatalogEntry `yaml:"portfolios"`
}

// DefaultCatalog returns the built-in canonical list.
func DefaultCatalog() Catalog {
	return Catalog{Portfolios: []CatalogEntry{
		{Name: "EVEREST RECEIVABLES Debt Collection Training", Short: "EVEREST"},
		{Name: "Medical Debt Collector Trainer", Short: "Medical"},
		{Name: "Auto Loan Debt Collection Trainer", Short: "Auto Loan"},
		{Name: "Credit Card Debt Collection Training", Short: "Credit Card"},
		{Name: "CashLane Loans SOP Assist", Short: "CashLane Loans"},
		{Name: "CDS SOP Assist", Short: "CDS"},
		{Name: "ARM Assist", Short: "ARM"},
		{Name: "CashLane Collections SOP Assist", Short: "CashLane Collections"},
		{Name: "Key 2 Recovery Debt Collection Training", Short: "Key 2 Recovery"},
		{Name: "Guglielmo & Associates Debt Collection Training", Short: "Guglielmo"},
	}}
}

// LoadCatalog reads a YAML catalog file.
//
// # Description
//
// The file has the shape
//
//	portfolios:
//	  - name: "Medical Debt Collector Trainer"
//	    short: "Medical"
//
// Entries without a short label get the full name as label. The result is
// validated before it is returned.
//
// # Inputs
//
//   - path: Catalog file. Empty returns DefaultCatalog.
//
// # Outputs
//
//   - Catalog: Validated catalog.
//   - error: Read, parse or validation failure.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read portfolio catalog: %w", err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse portfolio catalog %s: %w", path, err)
	}
	for i := range cat.Portfolios {
		cat.Portfolios[i].Name = strings.TrimSpace(cat.Portfolios[i].Name)
		cat.Portfolios[i].Short = strings.TrimSpace(cat.Portfolios[i].Short)
		if cat.Portfolios[i].Short == "" {
			cat.Portfolios[i].Short = cat.Portfolios[i].Name
		}
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("portfolio catalog %s: %w", path, err)
	}
	return cat, nil
}

// Validate checks that the catalog has exactly CatalogSize unique,
// non-empty names that fit the name column. Names are compared
// case-insensitively.
func (c Catalog) Validate() error {
	if len(c.Portfolios) != CatalogSize {
		return fmt.Errorf("expected %d portfolios, got %d", CatalogSize, len(c.Portfolios))
	}
	seen := make(map[string]bool, len(c.Portfolios))
	for i, p := range c.Portfolios {
		if p.Name == "" {
			return fmt.Errorf("portfolio #%d has no name", i+1)
		}
		if len([]rune(p.Name)) > maxNameLength {
			return fmt.Errorf("portfolio %q is longer than %d characters", p.Name, maxNameLength)
		}
		key := strings.ToLower(p.Name)
		if seen[key] {
			return fmt.Errorf("duplicate portfolio %q", p.Name)
		}
		seen[key] = true
	}
	return nil
}

// Names returns the canonical names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c.Portfolios))
	for i, p := range c.Portfolios {
		names[i] = p.Name
	}
	return names
}

// YAML renders the catalog in the LoadCatalog file format.
func (c Catalog) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c Catalog) short(name string) string {
	for _, p := range c.Portfolios {
		if p.Name == name {
			return p.Short
		}
	}
	return name
}
