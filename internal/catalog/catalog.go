package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"bag-service/internal/models"

	"github.com/shopspring/decimal"
)

//go:embed artworks.json
var seedArtworks []byte

var hundred = decimal.NewFromInt(100)

// Catalog is an ordered, read-only collection of artworks
type Catalog struct {
	artworks []models.ArtworkRecord
	index    map[int64]int
}

// New creates a catalog, rejecting duplicate identifiers and invalid pricing
func New(artworks []models.ArtworkRecord) (*Catalog, error) {
	c := &Catalog{
		artworks: make([]models.ArtworkRecord, 0, len(artworks)),
		index:    make(map[int64]int, len(artworks)),
	}

	for _, art := range artworks {
		if _, exists := c.index[art.ID]; exists {
			return nil, fmt.Errorf("duplicate artwork id %d", art.ID)
		}
		if !art.OriginalPrice.IsPositive() {
			return nil, fmt.Errorf("artwork %d: original price must be positive", art.ID)
		}
		if art.DiscountPercentage.IsNegative() || art.DiscountPercentage.GreaterThan(hundred) {
			return nil, fmt.Errorf("artwork %d: discount percentage must be within 0-100", art.ID)
		}

		c.index[art.ID] = len(c.artworks)
		c.artworks = append(c.artworks, art)
	}

	return c, nil
}

// Default returns the catalog embedded in the binary
func Default() (*Catalog, error) {
	return Parse(seedArtworks)
}

// Parse creates a catalog from a JSON array of artworks
func Parse(data []byte) (*Catalog, error) {
	var artworks []models.ArtworkRecord
	if err := json.Unmarshal(data, &artworks); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return New(artworks)
}

// Load reads the catalog from path, falling back to the embedded catalog when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Find returns the artwork with the given id
func (c *Catalog) Find(id int64) (models.ArtworkRecord, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.ArtworkRecord{}, false
	}
	return c.artworks[i], true
}

// All returns the artworks in catalog order
func (c *Catalog) All() []models.ArtworkRecord {
	out := make([]models.ArtworkRecord, len(c.artworks))
	copy(out, c.artworks)
	return out
}

// Len returns the number of artworks
func (c *Catalog) Len() int {
	return len(c.artworks)
}
