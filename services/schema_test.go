package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"outfitapi/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validItemJSON = `{"item_type":"jacket","description":"black leather jacket","color":"black","style_tags":["edgy"],"why_it_matches":"Anchors the look.","body_zone":"torso"}`

func variationJSON(name string) string {
	return fmt.Sprintf(`{"name":%q,"suggestion":"A look.","items":[%s],"color_palette":["#000000"],"styling_tips":["Roll the sleeves"]}`, name, validItemJSON)
}

func payload(variations ...string) string {
	return `{"variations":[` + strings.Join(variations, ",") + `]}`
}

func validateJSON(t *testing.T, raw string) (*models.GenerationResult, error) {
	t.Helper()
	var tree any
	require.NoError(t, json.Unmarshal([]byte(raw), &tree))
	return ValidateGeneration(tree)
}

func TestValidateGenerationAcceptsMinimalPayload(t *testing.T) {
	result, err := validateJSON(t, payload(variationJSON("Minimal"), variationJSON("Street"), variationJSON("Elevated")))
	require.NoError(t, err)
	require.Len(t, result.Variations, 3)
	assert.Equal(t, models.VariationStreet, result.Variations[1].Name)
	assert.Equal(t, models.BodyZoneTorso, result.Variations[0].Items[0].BodyZone)
	assert.Nil(t, result.Variations[0].Items[0].Material)
}

func TestValidateGenerationRejectsWrongCount(t *testing.T) {
	_, err := validateJSON(t, payload(variationJSON("Minimal"), variationJSON("Street")))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Issues, "variations: expected exactly 3 variations, received 2")

	_, err = validateJSON(t, payload(variationJSON("Minimal"), variationJSON("Street"), variationJSON("Elevated"), variationJSON("Street")))
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Issues, "variations: expected exactly 3 variations, received 4")
}

func TestValidateGenerationRejectsDuplicateNames(t *testing.T) {
	_, err := validateJSON(t, payload(variationJSON("Minimal"), variationJSON("Minimal"), variationJSON("Elevated")))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"variations: variation names must be distinct, received Minimal, Minimal, Elevated"}, schemaErr.Issues)
}

func TestValidateGenerationRejectsBadName(t *testing.T) {
	_, err := validateJSON(t, payload(variationJSON("minimal"), variationJSON("Street"), variationJSON("Elevated")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `variations.0.name: expected one of Minimal | Street | Elevated, received "minimal"`)
}

func TestValidateGenerationRejectsMissingWhyItMatches(t *testing.T) {
	item := `{"item_type":"jacket","description":"d","color":"c","style_tags":[],"body_zone":"torso"}`
	broken := fmt.Sprintf(`{"name":"Minimal","suggestion":"s","items":[%s],"color_palette":[],"styling_tips":[]}`, item)

	_, err := validateJSON(t, payload(broken, variationJSON("Street"), variationJSON("Elevated")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variations.0.items.0.why_it_matches: expected string, received undefined")
}

func TestValidateGenerationReportsEveryIssue(t *testing.T) {
	item := `{"item_type":1,"description":"d","color":"c","material":5,"style_tags":["a",2],"why_it_matches":"w","body_zone":"waist","shopping_search_terms":[]}`
	broken := fmt.Sprintf(`{"name":"Street","items":[%s],"color_palette":"red","styling_tips":[]}`, item)

	_, err := validateJSON(t, payload(variationJSON("Minimal"), broken, variationJSON("Elevated")))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.ElementsMatch(t, []string{
		"variations.1.suggestion: expected string, received undefined",
		"variations.1.items.0.item_type: expected string, received number",
		"variations.1.items.0.material: expected string, received number",
		"variations.1.items.0.style_tags.1: expected string, received number",
		"variations.1.items.0.shopping_search_terms: expected string, received array",
		`variations.1.items.0.body_zone: expected one of head | torso | legs | feet | accessories, received "waist"`,
		"variations.1.color_palette: expected array, received \"red\"",
	}, schemaErr.Issues)
}

func TestValidateGenerationRejectsNonObjects(t *testing.T) {
	_, err := ValidateGeneration([]any{})
	assert.EqualError(t, err, "(root): expected object, received array")

	_, err = ValidateGeneration(map[string]any{"variations": nil})
	assert.EqualError(t, err, "variations: expected array, received undefined")
}

func TestValidateGenerationAllowsNullOptionalFields(t *testing.T) {
	item := `{"item_type":"jacket","description":"d","color":"c","material":null,"shopping_search_terms":null,"style_tags":[],"why_it_matches":"w","body_zone":"torso"}`
	variation := fmt.Sprintf(`{"name":"Minimal","suggestion":"s","items":[%s],"color_palette":[],"styling_tips":[]}`, item)

	_, err := validateJSON(t, payload(variation, variationJSON("Street"), variationJSON("Elevated")))
	assert.NoError(t, err)
}
