package billing

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML shape of an externally managed plan catalog.
//
//	plans:
//	  pro:
//	    features: [ai_analysis, premium_exports]
//	    quotas:
//	      ai_analyses: -1
//	      batch_operations: 10
//	    prices: [price_1ABCpro]
type catalogFile struct {
	Plans map[Plan]struct {
		Features []Feature           `yaml:"features"`
		Quotas   map[Operation]int64 `yaml:"quotas"`
		Prices   []string            `yaml:"prices"`
	} `yaml:"plans"`
}

// LoadCatalogFile builds a catalog from a YAML file. It replaces the
// compiled-in defaults entirely, so the file must include a free plan entry.
func LoadCatalogFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	if len(file.Plans) == 0 {
		return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("no plans defined in %s", path))
	}

	plans := make(map[Plan]Entitlements, len(file.Plans))
	prices := make(map[string]Plan)
	for plan, entry := range file.Plans {
		plans[plan] = Entitlements{Features: entry.Features, Quotas: entry.Quotas}
		for _, priceID := range entry.Prices {
			if existing, ok := prices[priceID]; ok {
				return nil, errors.Join(ErrInvalidCatalog,
					fmt.Errorf("price %s bound to both %s and %s", priceID, existing, plan))
			}
			prices[priceID] = plan
		}
	}

	return NewCatalog(plans, prices)
}
