// Package achievements decides which achievements a just-closed session
// unlocks. The catalog is data: every entry names a predicate kind and a
// threshold, and evaluation is a pure function of the session history.
package achievements

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kaptinlin/jsonschema"

	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/models"
)

// Kind is the predicate an achievement uses
type Kind string

const (
	KindSessionCountEq     Kind = "session_count_eq"
	KindSessionCountGTE    Kind = "session_count_gte"
	KindDurationLT         Kind = "duration_lt"
	KindDurationGT         Kind = "duration_gt"
	KindWeeklyTotalGTE     Kind = "weekly_total_gte"
	KindEndHourLT          Kind = "end_hour_lt"
	KindEndHourGTE         Kind = "end_hour_gte"
	KindWeekendSessionsGTE Kind = "weekend_sessions_gte"
)

//go:embed catalog.json
var defaultCatalogJSON []byte

//go:embed catalog.schema.json
var catalogSchemaJSON []byte

// Catalog is an immutable, ordered set of achievements. It is safe to share
// between goroutines.
type Catalog struct {
	entries []models.Achievement
}

// NewCatalog wraps entries as they are, without schema validation. Entries
// read back from storage go through here; malformed ones surface when
// evaluated.
func NewCatalog(entries []models.Achievement) *Catalog {
	cp := make([]models.Achievement, len(entries))
	copy(cp, entries)
	return &Catalog{entries: cp}
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogJSON)
	if err != nil {
		panic(fmt.Sprintf("built-in achievement catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalogFile reads and validates a catalog from a JSON file
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog validates data against the catalog schema and decodes it
func ParseCatalog(data []byte) (*Catalog, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(catalogSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	result := schema.ValidateJSON(data)
	if !result.IsValid() {
		return nil, apperrors.Wrap(apperrors.CodeInvalidCatalog, "catalog failed schema validation",
			fmt.Errorf("%v", result.Errors))
	}

	var entries []models.Achievement
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidCatalog, "decode catalog", err)
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			return nil, apperrors.New(apperrors.CodeInvalidCatalog, fmt.Sprintf("duplicate achievement id %q", e.ID))
		}
		seen[e.ID] = true
	}
	return &Catalog{entries: entries}, nil
}

// Entries returns a copy of the catalog entries in catalog order
func (c *Catalog) Entries() []models.Achievement {
	cp := make([]models.Achievement, len(c.entries))
	copy(cp, c.entries)
	return cp
}

// Lookup finds an entry by id
func (c *Catalog) Lookup(id string) (models.Achievement, bool) {
	for _, e := range c.entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.Achievement{}, false
}

// Validate checks every entry the way evaluation does
func (c *Catalog) Validate() error {
	for _, e := range c.entries {
		if err := validateEntry(e); err != nil {
			return err
		}
	}
	return nil
}

func validateEntry(e models.Achievement) error {
	if e.ID == "" {
		return apperrors.Wrap(apperrors.CodeMalformedRule, "malformed achievement rule", fmt.Errorf("empty id"))
	}
	if e.Threshold < 0 {
		return apperrors.Wrap(apperrors.CodeMalformedRule, "malformed achievement rule",
			fmt.Errorf("%s: negative threshold %d", e.ID, e.Threshold))
	}
	switch Kind(e.Kind) {
	case KindSessionCountEq, KindSessionCountGTE, KindDurationLT, KindDurationGT,
		KindWeeklyTotalGTE, KindEndHourLT, KindEndHourGTE, KindWeekendSessionsGTE:
		return nil
	default:
		return apperrors.Wrap(apperrors.CodeMalformedRule, "malformed achievement rule",
			fmt.Errorf("%s: unknown kind %q", e.ID, e.Kind))
	}
}
