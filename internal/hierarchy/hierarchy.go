// Package hierarchy bulk-loads the nested administrative tree (county,
// constituency, ward) ahead of row processing. The load is idempotent:
// reloading an edited file updates names in place through the storage
// layer's upsert semantics and never duplicates a level.
package hierarchy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"jali/internal/storage"
)

// Tree mirrors the externally curated hierarchy file.
type Tree []County

type County struct {
	Name           string         `json:"county" yaml:"county"`
	Constituencies []Constituency `json:"constituencies" yaml:"constituencies"`
}

type Constituency struct {
	Name  string `json:"name" yaml:"name"`
	Wards []Ward `json:"wards" yaml:"wards"`
}

type Ward struct {
	Name string `json:"name" yaml:"name"`
}

// Counts reports what a load did per administrative level. Skipped counts
// malformed branches (blank names) that were dropped with a warning.
type Counts struct {
	Counties       int
	Constituencies int
	Wards          int
	Skipped        int
}

// ReadFile decodes a hierarchy file by extension. JSON and YAML are the two
// formats curators deliver.
func ReadFile(path string) (Tree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hierarchy file: %w", err)
	}

	var tree Tree
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("decode hierarchy %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("decode hierarchy %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("hierarchy file %s: unsupported extension %q", path, ext)
	}
	return tree, nil
}

// Loader upserts a Tree parent-first.
type Loader struct {
	store storage.HierarchyStore
	log   *slog.Logger
}

func NewLoader(store storage.HierarchyStore, log *slog.Logger) *Loader {
	return &Loader{store: store, log: log}
}

// Load walks the tree county by county. A branch with a blank name is
// skipped, with its subtree, and the rest of the load continues; the
// hierarchy files are curated by hand and one bad branch should not block
// ingestion of the rest. Storage errors abort the load.
func (l *Loader) Load(ctx context.Context, tree Tree) (Counts, error) {
	var counts Counts

	for _, county := range tree {
		countyName := strings.TrimSpace(county.Name)
		if countyName == "" {
			l.log.Warn("skipping county with blank name",
				"constituencies", len(county.Constituencies))
			counts.Skipped++
			continue
		}
		countyID, err := l.store.UpsertCounty(ctx, countyName)
		if err != nil {
			return counts, fmt.Errorf("load county %q: %w", countyName, err)
		}
		counts.Counties++

		for _, constituency := range county.Constituencies {
			constituencyName := strings.TrimSpace(constituency.Name)
			if constituencyName == "" {
				l.log.Warn("skipping constituency with blank name",
					"county", countyName, "wards", len(constituency.Wards))
				counts.Skipped++
				continue
			}
			constituencyID, err := l.store.UpsertConstituency(ctx, constituencyName, countyID)
			if err != nil {
				return counts, fmt.Errorf("load constituency %q: %w", constituencyName, err)
			}
			counts.Constituencies++

			for _, ward := range constituency.Wards {
				wardName := strings.TrimSpace(ward.Name)
				if wardName == "" {
					l.log.Warn("skipping ward with blank name",
						"county", countyName, "constituency", constituencyName)
					counts.Skipped++
					continue
				}
				if _, err := l.store.UpsertWard(ctx, wardName, constituencyID); err != nil {
					return counts, fmt.Errorf("load ward %q: %w", wardName, err)
				}
				counts.Wards++
			}
		}
	}

	l.log.Info("hierarchy loaded",
		"counties", counts.Counties,
		"constituencies", counts.Constituencies,
		"wards", counts.Wards,
		"skipped", counts.Skipped)
	return counts, nil
}
