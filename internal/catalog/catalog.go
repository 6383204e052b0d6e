package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/gosimple/slug"
	"github.com/revolutionai/storefront/internal/config"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	ErrInvalidCatalog = errors.New("invalid_catalog")
	ErrInvalidPrice   = errors.New("invalid_price")
)

// Product is a purchasable monthly plan.
type Product struct {
	ID          string   `json:"id" yaml:"id" mapstructure:"id"`
	Name        string   `json:"name" yaml:"name" mapstructure:"name"`
	Description string   `json:"description" yaml:"description" mapstructure:"description"`
	Price       string   `json:"price" yaml:"price" mapstructure:"price"`
	Features    []string `json:"features" yaml:"features" mapstructure:"features"`
	Category    string   `json:"category" yaml:"category" mapstructure:"category"`
}

// AmountCents converts the display price ("$9", "$12.50") to minor units.
func (p Product) AmountCents() (int64, error) {
	raw := strings.TrimSpace(p.Price)
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, ErrInvalidPrice
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, p.Price)
	}
	cents := amount.Shift(2)
	if !cents.IsInteger() || !cents.IsPositive() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, p.Price)
	}
	return cents.IntPart(), nil
}

type document struct {
	Products []Product `yaml:"products" mapstructure:"products"`
}

type snapshot struct {
	products []Product
	byID     map[string]Product
}

// Catalog serves the current product set. Reloads swap the whole set atomically.
type Catalog struct {
	current atomic.Value // holds *snapshot
	log     *zap.Logger
}

// New builds the catalog from the embedded default, or from cfg.CatalogFile when set.
// A configured file is watched and reloaded on change.
func New(cfg config.Config, log *zap.Logger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Catalog{log: log.Named("catalog")}

	if strings.TrimSpace(cfg.CatalogFile) == "" {
		products, err := Parse(defaultCatalog)
		if err != nil {
			return nil, err
		}
		c.store(products)
		return c, nil
	}

	v := viper.New()
	v.SetConfigFile(cfg.CatalogFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", cfg.CatalogFile, err)
	}
	products, err := decodeViper(v)
	if err != nil {
		return nil, err
	}
	c.store(products)

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeViper(v)
		if err != nil {
			c.log.Warn("invalid catalog ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		c.store(updated)
		c.log.Info("catalog reloaded", zap.String("file", e.Name), zap.Int("products", len(updated)))
	})
	v.WatchConfig()

	c.log.Info("catalog loaded", zap.String("file", cfg.CatalogFile), zap.Int("products", len(products)))
	return c, nil
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return New(config.Config{}, nil)
}

// FromProducts builds a static catalog. The products are validated.
func FromProducts(products []Product) (*Catalog, error) {
	if err := Validate(products); err != nil {
		return nil, err
	}
	c := &Catalog{log: zap.NewNop()}
	c.store(products)
	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) ([]Product, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := Validate(doc.Products); err != nil {
		return nil, err
	}
	return doc.Products, nil
}

func decodeViper(v *viper.Viper) ([]Product, error) {
	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := Validate(doc.Products); err != nil {
		return nil, err
	}
	return doc.Products, nil
}

// Validate checks ids, names and prices of every product.
func Validate(products []Product) error {
	if len(products) == 0 {
		return fmt.Errorf("%w: no products", ErrInvalidCatalog)
	}
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if !slug.IsSlug(p.ID) {
			return fmt.Errorf("%w: product %d has invalid id %q", ErrInvalidCatalog, i, p.ID)
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("%w: duplicate product id %q", ErrInvalidCatalog, p.ID)
		}
		seen[p.ID] = struct{}{}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: product %q has no name", ErrInvalidCatalog, p.ID)
		}
		if _, err := p.AmountCents(); err != nil {
			return fmt.Errorf("%w: product %q: %v", ErrInvalidCatalog, p.ID, err)
		}
	}
	return nil
}

func (c *Catalog) store(products []Product) {
	snap := &snapshot{
		products: append([]Product(nil), products...),
		byID:     make(map[string]Product, len(products)),
	}
	for _, p := range products {
		snap.byID[p.ID] = p
	}
	c.current.Store(snap)
}

func (c *Catalog) load() *snapshot {
	return c.current.Load().(*snapshot)
}

// List returns the products in catalog order.
func (c *Catalog) List() []Product {
	return append([]Product(nil), c.load().products...)
}

func (c *Catalog) Get(id string) (Product, bool) {
	p, ok := c.load().byID[strings.TrimSpace(id)]
	return p, ok
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	set := map[string]struct{}{}
	for _, p := range c.load().products {
		if p.Category != "" {
			set[p.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for category := range set {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}
