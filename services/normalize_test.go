package services

import (
	"encoding/json"
	"testing"

	"outfitapi/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferBodyZone(t *testing.T) {
	cases := []struct {
		itemType    string
		description string
		want        models.BodyZone
	}{
		{"Sneakers", "white low tops", models.BodyZoneFeet},
		{"Chelsea Boot", "", models.BodyZoneFeet},
		{"T-Shirt", "", models.BodyZoneTorso},
		{"outerwear", "denim jacket", models.BodyZoneTorso},
		{"Jeans", "slim raw denim", models.BodyZoneLegs},
		{"bottoms", "cargo pants", models.BodyZoneLegs},
		{"Bucket Hat", "", models.BodyZoneHead},
		{"belt", "brown leather", models.BodyZoneAccessories},
		// shoes win over shirt because feet is checked first
		{"shirt", "worn with shoes", models.BodyZoneFeet},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, InferBodyZone(tc.itemType, tc.description), tc.itemType+" "+tc.description)
	}
}

func decodeTree(t *testing.T, payload string) any {
	t.Helper()
	var tree any
	require.NoError(t, json.Unmarshal([]byte(payload), &tree))
	return tree
}

func TestNormalizeResponseRepairsItems(t *testing.T) {
	tree := decodeTree(t, `{"variations":[{"name":"Street","items":[
		{"item_type":"sneakers","description":"white","color":"white","body_zone":"Shoes"},
		{"item_type":"hat","description":"cap","color":"red","body_zone":" HEAD ","why_it_matches":"  "},
		{"item_type":"scarf","description":"wool","color":"grey","body_zone":null,"style_tags":"cozy"}
	]}]}`)

	out := NormalizeResponse(tree).(map[string]any)
	variation := out["variations"].([]any)[0].(map[string]any)
	items := variation["items"].([]any)

	first := items[0].(map[string]any)
	assert.Equal(t, "feet", first["body_zone"])
	assert.Equal(t, "Complements the street style.", first["why_it_matches"])
	assert.Equal(t, []any{}, first["style_tags"])

	second := items[1].(map[string]any)
	assert.Equal(t, "head", second["body_zone"])
	assert.Equal(t, "Complements the street style.", second["why_it_matches"])

	third := items[2].(map[string]any)
	assert.Equal(t, "accessories", third["body_zone"])
	assert.Equal(t, []any{}, third["style_tags"])

	assert.Equal(t, []any{}, variation["styling_tips"])
	assert.Equal(t, []any{}, variation["color_palette"])
}

func TestNormalizeResponseKeepsValidFields(t *testing.T) {
	tree := decodeTree(t, `{"variations":[{"name":"Minimal","styling_tips":["a"],"color_palette":["#fff"],"items":[
		{"item_type":"shirt","description":"oxford","color":"blue","body_zone":"legs","why_it_matches":"Because.","style_tags":["classic"]}
	]}]}`)

	out := NormalizeResponse(tree).(map[string]any)
	variation := out["variations"].([]any)[0].(map[string]any)
	item := variation["items"].([]any)[0].(map[string]any)

	// a valid zone is trusted even when keywords disagree
	assert.Equal(t, "legs", item["body_zone"])
	assert.Equal(t, "Because.", item["why_it_matches"])
	assert.Equal(t, []any{"classic"}, item["style_tags"])
	assert.Equal(t, []any{"a"}, variation["styling_tips"])
}

func TestNormalizeResponseFallbackStyleName(t *testing.T) {
	tree := decodeTree(t, `{"variations":[{"items":[{"item_type":"ring"}]}]}`)
	out := NormalizeResponse(tree).(map[string]any)
	item := out["variations"].([]any)[0].(map[string]any)["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "Complements the outfit style.", item["why_it_matches"])
}

func TestNormalizeResponseDoesNotMutateInput(t *testing.T) {
	tree := decodeTree(t, `{"variations":[{"name":"Street","items":[{"item_type":"boot","body_zone":"shoes"}]}]}`)
	NormalizeResponse(tree)
	item := tree.(map[string]any)["variations"].([]any)[0].(map[string]any)["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "shoes", item["body_zone"])
}

func TestNormalizeResponseIsTotal(t *testing.T) {
	inputs := []any{
		nil,
		"text",
		float64(3),
		true,
		[]any{1, "a"},
		map[string]any{},
		map[string]any{"variations": "nope"},
		map[string]any{"variations": []any{"x", nil, map[string]any{"items": "y"}, map[string]any{"items": []any{1, nil}}}},
	}
	for _, input := range inputs {
		assert.NotPanics(t, func() {
			out := NormalizeResponse(input)
			switch input.(type) {
			case map[string]any:
				assert.IsType(t, map[string]any{}, out)
			default:
				assert.Equal(t, input, out)
			}
		})
	}
}
