package categorizer

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/textutil"
)

// DefaultRuleConfidence is used for rules that do not set a confidence
const DefaultRuleConfidence = 0.8

// DefaultRules are supplier rules for common Colombian merchants.
// Patterns are matched against the folded supplier name.
var DefaultRules = []model.CategoryMappingRule{
	{
		SupplierPattern:   `\b(exito|carulla|jumbo|d1|ara|olimpica|metro|makro|surtimax|la 14|colsubsidio|justo y bueno)\b`,
		SuggestedCategory: model.CategoryGroceries,
		Confidence:        0.9,
		Keywords:          []string{"supermercado", "minimercado", "autoservicio", "fruver"},
	},
	{
		SupplierPattern:   `\b(terpel|primax|esso|texaco|biomax|mobil|uber|cabify|didi|avianca|latam|transmilenio)\b`,
		SuggestedCategory: model.CategoryTransport,
		Confidence:        0.85,
		Keywords:          []string{"estacion de servicio", "parqueadero", "peaje", "aerolinea"},
	},
	{
		SupplierPattern:   `\b(cruz verde|farmatodo|locatel|colsanitas|sura)\b`,
		SuggestedCategory: model.CategoryHealth,
		Confidence:        0.85,
		Keywords:          []string{"drogueria", "farmacia", "clinica", "hospital", "laboratorio clinico"},
	},
	{
		SupplierPattern:   `\b(crepes|frisby|el corral|mcdonald'?s|kfc|burger king|juan valdez|oma|presto)\b`,
		SuggestedCategory: model.CategoryFood,
		Confidence:        0.8,
		Keywords:          []string{"restaurante", "panaderia", "asadero", "pizzeria", "cafeteria", "comidas"},
	},
	{
		SupplierPattern:   `\b(claro|movistar|tigo|etb|epm|codensa|enel|vanti|gases del caribe|acueducto)\b`,
		SuggestedCategory: model.CategoryUtilities,
		Confidence:        0.9,
		Keywords:          []string{"empresas publicas", "telecomunicaciones", "energia"},
	},
	{
		SupplierPattern:   `\b(cine colombia|cinemark|procinal|cinepolis|tuboleta|eticket)\b`,
		SuggestedCategory: model.CategoryEntertainment,
		Confidence:        0.8,
		Keywords:          []string{"teatro", "parque de diversiones", "bolera"},
	},
	{
		SupplierPattern:   `\b(falabella|zara|arturo calle|studio f|koaj|h&m|adidas|nike|velez)\b`,
		SuggestedCategory: model.CategoryClothing,
		Confidence:        0.75,
		Keywords:          []string{"boutique", "confecciones", "calzado"},
	},
	{
		SupplierPattern:   `\b(homecenter|ikea|easy|tugo|jamar)\b`,
		SuggestedCategory: model.CategoryHome,
		Confidence:        0.8,
		Keywords:          []string{"ferreteria", "muebles", "hogar"},
	},
	{
		SupplierPattern:   `\b(alkosto|ktronix|apple|samsung|mac center)\b`,
		SuggestedCategory: model.CategoryTechnology,
		Confidence:        0.75,
		Keywords:          []string{"tecnologia", "computadores", "celulares"},
	},
	{
		SupplierPattern:   `\b(panamericana|universidad|colegio|instituto)\b`,
		SuggestedCategory: model.CategoryEducation,
		Confidence:        0.8,
		Keywords:          []string{"libreria", "academia", "escuela"},
	},
}

type compiledRule struct {
	rule     model.CategoryMappingRule
	pattern  *regexp.Regexp
	keywords []string
}

func compileRules(rules []model.CategoryMappingRule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if !r.SuggestedCategory.IsValid() {
			return nil, model.NewValidationError(fmt.Sprintf("rules[%d].suggestedCategory", i), r.SuggestedCategory, "enum", "unknown category")
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return nil, model.NewValidationError(fmt.Sprintf("rules[%d].confidence", i), r.Confidence, "range", "must be between 0 and 1")
		}
		if r.Confidence == 0 {
			r.Confidence = DefaultRuleConfidence
		}

		cr := compiledRule{rule: r}
		if r.SupplierPattern != "" {
			re, err := regexp.Compile("(?i)" + r.SupplierPattern)
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: compile supplier pattern: %w", i, err)
			}
			cr.pattern = re
		}
		for _, kw := range r.Keywords {
			if f := textutil.Fold(kw); f != "" {
				cr.keywords = append(cr.keywords, f)
			}
		}
		if cr.pattern == nil && len(cr.keywords) == 0 {
			return nil, model.NewValidationError(fmt.Sprintf("rules[%d]", i), nil, "required", "needs a supplier pattern or keywords")
		}
		compiled = append(compiled, cr)
	}
	return compiled, nil
}

type ruleFile struct {
	Rules []model.CategoryMappingRule `yaml:"rules"`
}

// ParseRules decodes a YAML rule document with a top-level "rules" list.
func ParseRules(data []byte) ([]model.CategoryMappingRule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, model.NewParseError("yaml", "rules", "invalid rule document", err)
	}
	if _, err := compileRules(f.Rules); err != nil {
		return nil, err
	}
	return f.Rules, nil
}

// LoadRules reads category rules from a YAML file
func LoadRules(path string) ([]model.CategoryMappingRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category rules: %w", err)
	}
	return ParseRules(data)
}
