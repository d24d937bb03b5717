// Package rules loads and validates the pipeline configuration.
//
// The configuration is read once per run into a strongly typed Config. Both
// JSON and YAML documents are accepted; the keys may sit at the top level or
// under a "settings" object. Unknown top-level keys are ignored, while an
// unexpected value inside a recognized key fails validation.
//
// Example:
//
//	{
//	  "transformations": ["add_month", "add_cat_1", "add_cat_2"],
//	  "remove_transactions": ["AutoPay"],
//	  "custom_category_map": {
//	    "Rent": ["Landlord"],
//	    "Rideshare": ["Uber", "!Eats"],
//	    "Transfers": [500.00]
//	  }
//	}
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"budgetpipe/internal/categorize"
	"budgetpipe/internal/matcher"
	"budgetpipe/internal/transform"
)

// Configuration keys.
const (
	KeyTransformations     = "transformations"
	KeyRemoveTransactions  = "remove_transactions"
	KeyCustomCategoryMap   = "custom_category_map"
	KeyRemoveAccountIDs    = "remove_account_ids"
	KeyCategoryRenamingMap = "category_renaming_map"
	KeyMatchMerchantName   = "match_merchant_name"
	keySettings            = "settings"
)

// Config is a validated pipeline configuration. It is not modified after
// loading and can be shared by concurrent runs.
type Config struct {
	// Transformations in the order they were listed.
	Transformations []transform.Step
	// RemoveTransactions holds substring terms; matching records are dropped.
	RemoveTransactions []matcher.Criterion
	// CustomCategoryMap keeps document order, which is the tie-break order.
	CustomCategoryMap []categorize.Rule
	RemoveAccountIDs  []string
	CategoryRenames   map[string]string
	MatchMerchantName bool

	// Digest identifies the source document.
	Digest string
}

// Format of a configuration document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension; JSON is the default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, FormatFromPath(path))
}

// LoadJSON reads a JSON configuration from r.
func LoadJSON(r io.Reader) (*Config, error) {
	return load(r, FormatJSON)
}

// LoadYAML reads a YAML configuration from r.
func LoadYAML(r io.Reader) (*Config, error) {
	return load(r, FormatYAML)
}

func load(r io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, format)
}

// Parse validates a configuration document.
func Parse(data []byte, format Format) (*Config, error) {
	var (
		doc *document
		err error
	)
	switch format {
	case FormatYAML:
		doc, err = decodeYAML(data)
	case FormatJSON, "":
		doc, err = decodeJSON(data)
	default:
		return nil, invalid("", "unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}

	cfg, err := doc.validate()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	cfg.Digest = hex.EncodeToString(sum[:])
	return cfg, nil
}

// Steps returns the configured steps; a nil Config has none.
func (c *Config) Steps() []transform.Step {
	if c == nil {
		return nil
	}
	return c.Transformations
}

// Mapper builds the category mapper for this configuration.
func (c *Config) Mapper() categorize.Mapper {
	return categorize.Mapper{
		Rules:   c.CustomCategoryMap,
		Renames: c.CategoryRenames,
		Matcher: c.Matcher(),
	}
}

// Matcher returns the matcher options for this configuration.
func (c *Config) Matcher() matcher.Matcher {
	return matcher.Matcher{IncludeMerchantName: c.MatchMerchantName}
}
