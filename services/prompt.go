package services

import (
	"errors"
	"fmt"
	"strings"

	"outfitapi/models"
)

const SystemInstruction = "You are a fashion styling assistant. Always return valid JSON."

var ErrNoItems = errors.New("at least one item is required")

// BuildPrompt renders the styling instruction for the given wardrobe items and preferences.
func BuildPrompt(userItems []models.UserItem, preferences models.OutfitPreferences) (string, error) {
	if len(userItems) == 0 {
		return "", ErrNoItems
	}

	var items strings.Builder
	for i, item := range userItems {
		if i > 0 {
			items.WriteString("\n")
		}
		fmt.Fprintf(&items, "%d. %s", i+1, item.Description)
		if item.HasImage() {
			items.WriteString(" (image provided)")
		}
	}

	return fmt.Sprintf(`You are an expert fashion stylist. A user wants outfit recommendations based on items they own or want to style.

USER'S ITEMS (these are LOCKED - must be included in all outfits):
%s

PREFERENCES:
- Occasion: %s
- Vibe: %d/100 (0 = Minimal, 100 = Bold)
- Fit: %s
- Weather: %s
- Budget: %s

TASK:
Generate exactly 3 complete outfit variations that:
1. Include ALL user items as anchor pieces
2. Complete the outfit with complementary pieces
3. Match the occasion, vibe, fit, weather, and budget
4. Provide detailed styling guidance

Return ONLY a JSON object with this exact structure:
{
  "variations": [
    {
      "name": "Minimal",
      "suggestion": "One or two sentences describing the overall look",
      "items": [
        {
          "item_type": "shirt",
          "description": "Crisp white button-down shirt",
          "color": "white",
          "material": "cotton",
          "style_tags": ["classic", "tailored", "versatile"],
          "why_it_matches": "Balances the user's items by...",
          "shopping_search_terms": "white button down shirt",
          "body_zone": "torso"
        }
      ],
      "color_palette": ["#FFFFFF", "#000000", "#808080"],
      "styling_tips": ["Tuck in the shirt", "Add a slim belt"]
    },
    {
      "name": "Street",
      "suggestion": "...",
      "items": [...],
      "color_palette": [...],
      "styling_tips": [...]
    },
    {
      "name": "Elevated",
      "suggestion": "...",
      "items": [...],
      "color_palette": [...],
      "styling_tips": [...]
    }
  ]
}

IMPORTANT:
- Return exactly 3 variations named exactly "Minimal", "Street" and "Elevated" (case-sensitive), one of each
- Each variation must include ALL user items
- Add 3-7 additional items to complete each outfit
- Every item must have item_type, description, color, style_tags (array of strings), why_it_matches and body_zone
- why_it_matches must be a full sentence explaining how the piece works with the user's items
- body_zone must be one of "head", "torso", "legs", "feet", "accessories" (lowercase)
- Be specific with colors (hex codes for palette)
- Make shopping_search_terms practical and searchable
- Output ONLY the JSON object, no markdown, no code fences and no text before or after it`,
		items.String(),
		preferences.Occasion,
		preferences.Vibe,
		preferences.Fit,
		preferences.Weather,
		preferences.Budget,
	), nil
}
