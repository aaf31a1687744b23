package traefik

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// traefikFileConfig is the slice of a Traefik dynamic-config file the
// engine cares about: http.routers.*.rule. Services, middlewares, and
// every other section are ignored on purpose, so middleware-only files
// cannot contribute false hostnames. The same struct decodes YAML and
// TOML.
type traefikFileConfig struct {
	HTTP *traefikHTTPConfig `yaml:"http" toml:"http"`
}

type traefikHTTPConfig struct {
	Routers map[string]*traefikRouter `yaml:"routers" toml:"routers"`
}

type traefikRouter struct {
	Rule string `yaml:"rule" toml:"rule"`
}

// DiscoverFromFiles scans paths (files or directories) for Traefik config
// files matching the comma-separated glob pattern and extracts hostnames
// from their router rules. Missing paths are logged and skipped; files
// that fail to parse degrade to a warning, so one broken file cannot
// suppress the rest.
func (p *Parser) DiscoverFromFiles(ctx context.Context, paths []string, pattern string) ([]HostnameExtraction, error) {
	patterns := strings.Split(pattern, ",")
	for i := range patterns {
		patterns[i] = strings.TrimSpace(patterns[i])
	}

	var allFiles []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				p.logger.Warn("traefik config path does not exist", "path", path)
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			files, err := p.findFilesInDir(path, patterns)
			if err != nil {
				return nil, err
			}
			allFiles = append(allFiles, files...)
		} else if p.matchesAnyPattern(filepath.Base(path), patterns) {
			allFiles = append(allFiles, path)
		}
	}

	p.logger.Debug("found traefik config files",
		"count", len(allFiles),
		"files", allFiles,
	)

	seen := make(map[string]struct{})
	var allExtractions []HostnameExtraction

	for _, file := range allFiles {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		extractions, err := p.parseConfigFile(file)
		if err != nil {
			p.logger.Warn("failed to parse traefik config file",
				"file", file,
				"error", err.Error(),
			)
			continue
		}

		for _, e := range extractions {
			if _, dup := seen[e.Hostname]; dup {
				continue
			}
			seen[e.Hostname] = struct{}{}
			allExtractions = append(allExtractions, e)
		}
	}

	return allExtractions, nil
}

// findFilesInDir walks dir and collects files matching any pattern.
func (p *Parser) findFilesInDir(dir string, patterns []string) ([]string, error) {
	var matches []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && p.matchesAnyPattern(d.Name(), patterns) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory %s: %w", dir, err)
	}

	return matches, nil
}

// matchesAnyPattern reports whether name matches at least one glob;
// malformed globs are skipped.
func (p *Parser) matchesAnyPattern(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// parseConfigFile picks the decoder by extension: .toml is TOML, .yml and
// .yaml (and anything unrecognized) go through the YAML decoder.
func (p *Parser) parseConfigFile(path string) ([]HostnameExtraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var config traefikFileConfig
	if strings.ToLower(filepath.Ext(path)) == ".toml" {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}

	return p.extractFromConfig(&config, path), nil
}

// extractFromConfig pulls hostnames from the parsed router rules.
func (p *Parser) extractFromConfig(config *traefikFileConfig, path string) []HostnameExtraction {
	if config.HTTP == nil || config.HTTP.Routers == nil {
		return nil
	}

	var extractions []HostnameExtraction
	for routerName, router := range config.HTTP.Routers {
		if router.Rule == "" {
			continue
		}
		for _, hostname := range extractHostsFromRule(router.Rule) {
			extractions = append(extractions, HostnameExtraction{
				Hostname: hostname,
				Router:   routerName,
			})
			p.logger.Debug("extracted hostname from file",
				"hostname", hostname,
				"router", routerName,
				"file", path,
			)
		}
	}
	return extractions
}
