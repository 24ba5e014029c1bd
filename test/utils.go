package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"outfitapi/models"
	"outfitapi/services"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {
	return NewRawJSONRequest(method, target, JsonString(param))
}

func NewRawJSONRequest(method string, target string, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func NewRefString(data string) *string {
	return &data
}

func IntPointer(i int) *int {
	return &i
}

// Clock is a settable time source for rate limit and cool-down tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func Variation(name models.VariationName) models.OutfitVariation {
	return models.OutfitVariation{
		Name:       name,
		Suggestion: fmt.Sprintf("A %s take on the wardrobe", strings.ToLower(string(name))),
		Items: []models.OutfitItem{
			{
				ItemType:     "jacket",
				Description:  "black leather jacket",
				Color:        "black",
				StyleTags:    []string{"edgy"},
				WhyItMatches: "anchors the look",
				BodyZone:     models.BodyZoneTorso,
			},
			{
				ItemType:            "sneakers",
				Description:         "white leather sneakers",
				Color:               "white",
				StyleTags:           []string{"clean"},
				WhyItMatches:        "keeps it light",
				ShoppingSearchTerms: NewRefString("white leather sneakers"),
				BodyZone:            models.BodyZoneFeet,
			},
		},
		ColorPalette: []string{"black", "white"},
		StylingTips:  []string{"roll the sleeves"},
	}
}

func GenerationResult() *models.GenerationResult {
	return &models.GenerationResult{Variations: []models.OutfitVariation{
		Variation(models.VariationMinimal),
		Variation(models.VariationStreet),
		Variation(models.VariationElevated),
	}}
}

// GenerationJSON is a valid provider reply wrapped in chatter and a code fence.
func GenerationJSON() string {
	return "Here you go:\n```json\n" + JsonString(GenerationResult()) + "\n```"
}

func UserItems() []models.UserItem {
	return []models.UserItem{
		{ID: "1", Description: "black leather jacket"},
		{ID: "2", Description: "white sneakers"},
	}
}

func Preferences() models.OutfitPreferences {
	return models.OutfitPreferences{
		Occasion: models.OccasionStreet,
		Vibe:     50,
		Fit:      models.FitRegular,
		Weather:  models.WeatherWarm,
		Budget:   models.BudgetMid,
	}
}

// FakeProvider replays Replies in order; once they run out the last one repeats.
type FakeProvider struct {
	ProviderName string
	ModelName    string
	Replies      []FakeReply

	mu      sync.Mutex
	Prompts []string
}

type FakeReply struct {
	Text string
	Err  error
}

func (p *FakeProvider) Name() string  { return p.ProviderName }
func (p *FakeProvider) Model() string { return p.ModelName }

func (p *FakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Prompts = append(p.Prompts, prompt)
	if len(p.Replies) == 0 {
		return "", fmt.Errorf("%s: no reply configured", p.ProviderName)
	}
	index := len(p.Prompts) - 1
	if index >= len(p.Replies) {
		index = len(p.Replies) - 1
	}
	reply := p.Replies[index]
	return reply.Text, reply.Err
}

func (p *FakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Prompts)
}

type GeneratorMock struct {
	Generation *services.Generation
	Err        error

	mu    sync.Mutex
	Calls int
}

func (m *GeneratorMock) Generate(ctx context.Context, userItems []models.UserItem, preferences models.OutfitPreferences) (*services.Generation, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Generation != nil {
		return m.Generation, nil
	}
	return &services.Generation{
		Result:   GenerationResult(),
		Provider: services.ProviderGoogle,
		Model:    "gemini-2.0-flash",
		Prompt:   "prompt",
		Duration: 1200 * time.Millisecond,
	}, nil
}

type RecorderMock struct {
	mu      sync.Mutex
	Records []services.GenerationRecord
	Err     error
}

func (m *RecorderMock) Record(ctx context.Context, record services.GenerationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, record)
	return m.Err
}

func (m *RecorderMock) All() []services.GenerationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.GenerationRecord(nil), m.Records...)
}

type ImageSearchMock struct {
	Images []models.OutfitImage
	Err    error

	mu     sync.Mutex
	Counts []int
}

func (m *ImageSearchMock) Search(ctx context.Context, variation models.OutfitVariation, count int) ([]models.OutfitImage, error) {
	m.mu.Lock()
	m.Counts = append(m.Counts, count)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Images, nil
}

type SnapshotStorageMock struct {
	MockUrl string
	Err     error

	mu      sync.Mutex
	Objects map[string][]byte
}

func (m *SnapshotStorageMock) PutSnapshot(ctx context.Context, objectKey string, body []byte) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = map[string][]byte{}
	}
	m.Objects[objectKey] = body
	return nil
}

func (m *SnapshotStorageMock) GetPresignedReadURL(ctx context.Context, objectKey string) (string, error) {
	if m.MockUrl != "" {
		return m.MockUrl, nil
	}
	return fmt.Sprintf("https://fakebucketurl.com/%s", objectKey), nil
}

type URLCacheMock struct {
	MockUrl string
}

func (m URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	return m.MockUrl, nil
}
