package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

// FileCatalog reads regions from a YAML document of the form
//
//	regions:
//	  - id: İstanbul
//	    subregions: [Kadıköy, Merkez]
//
// Names go through the same normalization as the scraped catalog.
type FileCatalog struct {
	path string
}

var _ crawler.RegionCatalog = (*FileCatalog)(nil)

// NewFileCatalog returns a catalog backed by the YAML file at path.
func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

type fileDocument struct {
	Regions []crawler.Region `yaml:"regions"`
}

// Regions loads and normalizes the file.
func (c *FileCatalog) Regions(ctx context.Context) ([]crawler.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read region catalog: %w", err)
	}
	return ParseYAML(raw)
}

// ParseYAML decodes and normalizes a YAML region document.
func ParseYAML(raw []byte) ([]crawler.Region, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode region catalog: %w", err)
	}
	var pairs [][2]string
	for _, r := range doc.Regions {
		for _, sub := range r.Subregions {
			pairs = append(pairs, [2]string{r.ID, sub})
		}
	}
	regions := Group(pairs)
	if len(regions) == 0 {
		return nil, errors.New("region catalog file lists no regions")
	}
	return regions, nil
}
