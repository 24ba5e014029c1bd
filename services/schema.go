package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"outfitapi/models"
)

const requiredVariationCount = 3

// SchemaError lists every violation found in a model payload as `path: message`.
type SchemaError struct {
	Issues []string
}

func (e *SchemaError) Error() string {
	return strings.Join(e.Issues, "; ")
}

type schemaChecker struct {
	issues []string
}

func (s *schemaChecker) fail(path, format string, args ...any) {
	if path == "" {
		path = "(root)"
	}
	s.issues = append(s.issues, path+": "+fmt.Sprintf(format, args...))
}

func (s *schemaChecker) requireString(object map[string]any, path, key string) (string, bool) {
	value, ok := object[key].(string)
	if !ok {
		s.fail(joinPath(path, key), "expected string, received %s", describe(object[key]))
	}
	return value, ok
}

func (s *schemaChecker) requireStringArray(object map[string]any, path, key string) {
	fieldPath := joinPath(path, key)
	values, ok := object[key].([]any)
	if !ok {
		s.fail(fieldPath, "expected array, received %s", describe(object[key]))
		return
	}
	for i, value := range values {
		if _, ok := value.(string); !ok {
			s.fail(joinPath(fieldPath, i), "expected string, received %s", describe(value))
		}
	}
}

// ValidateGeneration is the gate between untrusted model output and the rest of the
// service. It expects the normalized generic tree and returns the typed result only
// when every check passes.
func ValidateGeneration(v any) (*models.GenerationResult, error) {
	checker := &schemaChecker{}

	root, ok := v.(map[string]any)
	if !ok {
		checker.fail("", "expected object, received %s", describe(v))
		return nil, &SchemaError{Issues: checker.issues}
	}

	variations, ok := root["variations"].([]any)
	if !ok {
		checker.fail("variations", "expected array, received %s", describe(root["variations"]))
		return nil, &SchemaError{Issues: checker.issues}
	}
	if len(variations) != requiredVariationCount {
		checker.fail("variations", "expected exactly %d variations, received %d", requiredVariationCount, len(variations))
	}

	names := make([]string, 0, len(variations))
	for i, rawVariation := range variations {
		path := joinPath("variations", i)
		variation, ok := rawVariation.(map[string]any)
		if !ok {
			checker.fail(path, "expected object, received %s", describe(rawVariation))
			continue
		}
		if name, ok := variation["name"].(string); !ok || !models.IsVariationName(name) {
			checker.fail(joinPath(path, "name"), "expected one of Minimal | Street | Elevated, received %s", describe(variation["name"]))
		} else {
			names = append(names, name)
		}
		checker.requireString(variation, path, "suggestion")
		checker.checkItems(variation, path)
		checker.requireStringArray(variation, path, "color_palette")
		checker.requireStringArray(variation, path, "styling_tips")
	}

	if len(checker.issues) == 0 && hasDuplicates(names) {
		checker.fail("variations", "variation names must be distinct, received %s", strings.Join(names, ", "))
	}

	if len(checker.issues) > 0 {
		return nil, &SchemaError{Issues: checker.issues}
	}

	encoded, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("re-encoding validated payload: %w", err)
	}
	var result models.GenerationResult
	if err := json.Unmarshal(encoded, &result); err != nil {
		return nil, fmt.Errorf("decoding validated payload: %w", err)
	}
	return &result, nil
}

func (s *schemaChecker) checkItems(variation map[string]any, path string) {
	itemsPath := joinPath(path, "items")
	items, ok := variation["items"].([]any)
	if !ok {
		s.fail(itemsPath, "expected array, received %s", describe(variation["items"]))
		return
	}
	for j, rawItem := range items {
		itemPath := joinPath(itemsPath, j)
		item, ok := rawItem.(map[string]any)
		if !ok {
			s.fail(itemPath, "expected object, received %s", describe(rawItem))
			continue
		}
		s.requireString(item, itemPath, "item_type")
		s.requireString(item, itemPath, "description")
		s.requireString(item, itemPath, "color")
		if material, present := item["material"]; present && material != nil {
			if _, ok := material.(string); !ok {
				s.fail(joinPath(itemPath, "material"), "expected string, received %s", describe(material))
			}
		}
		s.requireStringArray(item, itemPath, "style_tags")
		s.requireString(item, itemPath, "why_it_matches")
		if terms, present := item["shopping_search_terms"]; present && terms != nil {
			if _, ok := terms.(string); !ok {
				s.fail(joinPath(itemPath, "shopping_search_terms"), "expected string, received %s", describe(terms))
			}
		}
		if zone, ok := item["body_zone"].(string); !ok || !models.IsBodyZone(zone) {
			s.fail(joinPath(itemPath, "body_zone"), "expected one of head | torso | legs | feet | accessories, received %s", describe(item["body_zone"]))
		}
	}
}

func hasDuplicates(names []string) bool {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			return true
		}
		seen[name] = struct{}{}
	}
	return false
}

func joinPath(base string, key any) string {
	if base == "" {
		return fmt.Sprint(key)
	}
	return fmt.Sprintf("%s.%v", base, key)
}

func describe(v any) string {
	switch value := v.(type) {
	case nil:
		return "undefined"
	case string:
		return fmt.Sprintf("%q", value)
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
