package services

import (
	"fmt"
	"strings"

	"outfitapi/languageutil"
	"outfitapi/models"
)

// Keyword groups are checked in order; the first group with a substring hit wins.
var bodyZoneKeywords = []struct {
	zone     models.BodyZone
	keywords []string
}{
	{models.BodyZoneFeet, []string{"shoe", "sneaker", "boot"}},
	{models.BodyZoneTorso, []string{"shirt", "top", "jacket"}},
	{models.BodyZoneLegs, []string{"pant", "jean", "short"}},
	{models.BodyZoneHead, []string{"hat", "cap"}},
}

// InferBodyZone guesses a placement from an item's type and description.
func InferBodyZone(itemType, description string) models.BodyZone {
	haystack := languageutil.Lower(itemType + " " + description)
	for _, group := range bodyZoneKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(haystack, keyword) {
				return group.zone
			}
		}
	}
	return models.BodyZoneAccessories
}

// NormalizeResponse repairs fields models commonly get wrong before the payload is
// validated. It works on the generic tree produced by json.Unmarshal into `any` and
// never panics; values that are not objects are returned unchanged. The input is not
// modified.
func NormalizeResponse(v any) any {
	root, ok := v.(map[string]any)
	if !ok {
		return v
	}
	root = cloneTree(root).(map[string]any)

	variations, ok := root["variations"].([]any)
	if !ok {
		return root
	}
	for _, rawVariation := range variations {
		variation, ok := rawVariation.(map[string]any)
		if !ok {
			continue
		}
		normalizeVariation(variation)
	}
	return root
}

func normalizeVariation(variation map[string]any) {
	ensureArray(variation, "styling_tips")
	ensureArray(variation, "color_palette")

	styleName := "outfit"
	if name, ok := variation["name"].(string); ok && strings.TrimSpace(name) != "" {
		styleName = languageutil.NormalizeToken(name)
	}

	items, ok := variation["items"].([]any)
	if !ok {
		return
	}
	for _, rawItem := range items {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		normalizeItem(item, styleName)
	}
}

func normalizeItem(item map[string]any, styleName string) {
	zone := ""
	if raw, ok := item["body_zone"].(string); ok {
		zone = languageutil.NormalizeToken(raw)
	}
	if !models.IsBodyZone(zone) {
		itemType, _ := item["item_type"].(string)
		description, _ := item["description"].(string)
		zone = string(InferBodyZone(itemType, description))
	}
	item["body_zone"] = zone

	if why, ok := item["why_it_matches"].(string); !ok || strings.TrimSpace(why) == "" {
		item["why_it_matches"] = fmt.Sprintf("Complements the %s style.", styleName)
	}

	ensureArray(item, "style_tags")
}

func ensureArray(object map[string]any, key string) {
	if _, ok := object[key].([]any); !ok {
		object[key] = []any{}
	}
}

func cloneTree(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, child := range value {
			out[k] = cloneTree(child)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, child := range value {
			out[i] = cloneTree(child)
		}
		return out
	default:
		return value
	}
}
