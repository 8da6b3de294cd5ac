package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
)

//go:embed versions.yaml
var embeddedTable []byte

type releaseTable struct {
	Versions []Entry `yaml:"versions"`
}

// loadTable decodes the release table from file, or from the embedded copy
// when file is empty, and fills the derived fields.
func loadTable(file, baseURL string) ([]Entry, error) {
	data := embeddedTable
	if file != "" {
		var err error
		data, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("%w: read catalog file: %w", errdefs.ErrDisk, err)
		}
	}

	var table releaseTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse release table: %w", err)
	}

	entries := make([]Entry, 0, len(table.Versions))
	for _, e := range table.Versions {
		if e.Version == "" {
			continue
		}
		e.Version = Normalize(e.Version)
		e.Filename = ArchiveFilename(e.Version)
		e.URL = ArchiveURL(baseURL, e.Version)
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries, nil
}
