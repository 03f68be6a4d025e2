package ratecard

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var spec CatalogSpec
	if err := decodeStrict(data, &spec); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(spec)
}

func ParseRates(data []byte) (*RateTable, error) {
	var spec RateSpec
	if err := decodeStrict(data, &spec); err != nil {
		return nil, fmt.Errorf("parse rate table: %w", err)
	}
	return NewRateTable(spec)
}

func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func LoadRatesFile(path string) (*RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate table %s: %w", path, err)
	}
	return ParseRates(data)
}

// LoadFiles reads both tables; callers load once at startup and share the
// result across requests.
func LoadFiles(catalogPath, ratesPath string) (*Catalog, *RateTable, error) {
	catalog, err := LoadCatalogFile(catalogPath)
	if err != nil {
		return nil, nil, err
	}
	rates, err := LoadRatesFile(ratesPath)
	if err != nil {
		return nil, nil, err
	}
	return catalog, rates, nil
}
