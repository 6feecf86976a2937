// Package config loads kind catalogs and server settings from YAML or JSON.
package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/core/registry"
	"github.com/zeusync/bodysync/internal/core/simulation"
	"github.com/zeusync/bodysync/internal/server"
)

var (
	ErrBadCatalog = errors.New("invalid kind catalog")
	ErrBadServer  = errors.New("invalid server config")
)

// Catalog is an ordered list of kinds; a kind may only derive from one listed
// before it (or from the default kind).
type Catalog struct {
	Kinds []simulation.Kind `yaml:"kinds" json:"kinds"`
}

// Server is the whole server file: carriers, simulation settings, logging and an
// optional inline catalog.
type Server struct {
	Server     server.Config     `yaml:"server" json:"server"`
	Simulation simulation.Config `yaml:"simulation" json:"simulation"`
	Log        log.Config        `yaml:"log" json:"log"`
	// CatalogFile is read in addition to any kinds listed under simulation.
	CatalogFile string `yaml:"catalog_file" json:"catalog_file"`
}

func DefaultServer() Server {
	return Server{
		Server:     server.DefaultServerConfig(),
		Simulation: simulation.DefaultConfig(),
		Log:        log.DefaultConfig(),
	}
}

func LoadCatalogYAML(r io.Reader) ([]simulation.Kind, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(ErrBadCatalog, "yaml: %v", err)
	}
	if err := validate(c.Kinds); err != nil {
		return nil, err
	}
	return c.Kinds, nil
}

func LoadCatalogJSON(r io.Reader) ([]simulation.Kind, error) {
	var c Catalog
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(ErrBadCatalog, "json: %v", err)
	}
	if err := validate(c.Kinds); err != nil {
		return nil, err
	}
	return c.Kinds, nil
}

// LoadCatalogFile picks the decoder by extension: .json is JSON, anything else YAML.
func LoadCatalogFile(path string) ([]simulation.Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	defer f.Close()
	if filepath.Ext(path) == ".json" {
		return LoadCatalogJSON(f)
	}
	return LoadCatalogYAML(f)
}

// LoadServerYAML decodes over DefaultServer, so omitted keys keep their defaults.
func LoadServerYAML(r io.Reader) (Server, error) {
	cfg := DefaultServer()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Server{}, errors.Wrapf(ErrBadServer, "yaml: %v", err)
	}
	if cfg.Simulation.TickRate <= 0 {
		return Server{}, errors.Wrapf(ErrBadServer, "tick rate %v", cfg.Simulation.TickRate)
	}
	if cfg.Server.BroadcastEvery < 0 {
		return Server{}, errors.Wrapf(ErrBadServer, "broadcast_every %d", cfg.Server.BroadcastEvery)
	}
	if err := validate(cfg.Simulation.Kinds); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// LoadServerFile reads path and appends the referenced catalog, if any, to the
// simulation kinds. A relative catalog path is resolved against the directory of path.
func LoadServerFile(path string) (Server, error) {
	f, err := os.Open(path)
	if err != nil {
		return Server{}, errors.Wrapf(err, "open server config %s", path)
	}
	defer f.Close()

	cfg, err := LoadServerYAML(f)
	if err != nil {
		return Server{}, err
	}
	if cfg.CatalogFile != "" {
		catalog := cfg.CatalogFile
		if !filepath.IsAbs(catalog) {
			catalog = filepath.Join(filepath.Dir(path), catalog)
		}
		kinds, err := LoadCatalogFile(catalog)
		if err != nil {
			return Server{}, err
		}
		cfg.Simulation.Kinds = append(cfg.Simulation.Kinds, kinds...)
		if err := validate(cfg.Simulation.Kinds); err != nil {
			return Server{}, err
		}
	}
	return cfg, nil
}

func validate(kinds []simulation.Kind) error {
	seen := map[string]bool{registry.DefaultKind: true}
	for i, k := range kinds {
		switch {
		case k.Name == "":
			return errors.Wrapf(ErrBadCatalog, "kind #%d has no name", i)
		case k.Template != nil && (k.Structure != nil || k.Base != ""):
			return errors.Wrapf(ErrBadCatalog, "kind %q: template excludes base and structure", k.Name)
		case k.Base != "" && !seen[k.Base]:
			return errors.Wrapf(ErrBadCatalog, "kind %q: base %q is not defined before it", k.Name, k.Base)
		}
		seen[k.Name] = true
	}
	return nil
}
