package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"outfitapi/languageutil"
	"outfitapi/models"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultImageCount = 3
	MaxImageCount     = 10
	// MaxSearchTermsLength bounds the joined item terms of one variation.
	MaxSearchTermsLength = 500

	defaultPexelsBaseURL   = "https://api.pexels.com/v1"
	defaultUnsplashBaseURL = "https://api.unsplash.com"
	defaultSourceBaseURL   = "https://source.unsplash.com"

	unsplashTimeout     = 10 * time.Second
	imageCacheTTL       = 10 * time.Minute
	sourceImageCacheTTL = time.Minute
)

var ErrQueryTooLong = errors.New("Search query too long")

var sourceStopWords = []string{"style", "outfit", "fashion", "wear", "wearing"}

type ImageSearchServiceProvider interface {
	Search(ctx context.Context, variation models.OutfitVariation, count int) ([]models.OutfitImage, error)
}

type ImageSearchOptions struct {
	PexelsAPIKey      string
	UnsplashAccessKey string
	HTTPClient        *http.Client

	PexelsBaseURL   string
	UnsplashBaseURL string
	SourceBaseURL   string

	Now func() time.Time
}

// ImageSearchService looks up illustrative photos for a variation: Pexels first, then
// Unsplash, then keyless Unsplash Source links. Results are cached per query and count.
type ImageSearchService struct {
	opts  ImageSearchOptions
	cache *cache.LoadableCache[[]models.OutfitImage]
}

func imageCacheKey(query string, count int) string {
	return strconv.Itoa(count) + "|" + query
}

func parseImageCacheKey(key string) (string, int, bool) {
	countPart, query, ok := strings.Cut(key, "|")
	if !ok {
		return "", 0, false
	}
	count, err := strconv.Atoi(countPart)
	if err != nil {
		return "", 0, false
	}
	return query, count, true
}

func NewImageSearchService(opts ImageSearchOptions) (*ImageSearchService, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.PexelsBaseURL == "" {
		opts.PexelsBaseURL = defaultPexelsBaseURL
	}
	if opts.UnsplashBaseURL == "" {
		opts.UnsplashBaseURL = defaultUnsplashBaseURL
	}
	if opts.SourceBaseURL == "" {
		opts.SourceBaseURL = defaultSourceBaseURL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	s := &ImageSearchService{opts: opts}
	loadFunction := func(ctx context.Context, key any) ([]models.OutfitImage, []store.Option, error) {
		raw, ok := key.(string)
		if !ok {
			return nil, nil, fmt.Errorf("invalid key type provided to image cache: expected string, got %T", key)
		}
		query, count, ok := parseImageCacheKey(raw)
		if !ok {
			return nil, nil, fmt.Errorf("malformed image cache key %q", raw)
		}
		images, fromSource := s.lookup(ctx, query, count)
		ttl := imageCacheTTL
		if fromSource {
			ttl = sourceImageCacheTTL
		}
		return images, []store.Option{store.WithExpiration(ttl)}, nil
	}
	s.cache = cache.NewLoadable[[]models.OutfitImage](
		loadFunction,
		cache.New[[]models.OutfitImage](ristretto_store.NewRistretto(ristrettoCache)),
	)
	return s, nil
}

// BuildImageQuery renders "{name} style {terms} outfit fashion".
func BuildImageQuery(variation models.OutfitVariation) string {
	return strings.TrimSpace(fmt.Sprintf("%s style %s outfit fashion", variation.Name, variation.SearchTerms()))
}

func (s *ImageSearchService) Search(ctx context.Context, variation models.OutfitVariation, count int) ([]models.OutfitImage, error) {
	if len(variation.SearchTerms()) > MaxSearchTermsLength {
		return nil, ErrQueryTooLong
	}
	if count <= 0 {
		count = DefaultImageCount
	}
	if count > MaxImageCount {
		count = MaxImageCount
	}
	return s.cache.Get(ctx, imageCacheKey(BuildImageQuery(variation), count))
}

// lookup never fails; the keyless source links are the last resort.
func (s *ImageSearchService) lookup(ctx context.Context, query string, count int) ([]models.OutfitImage, bool) {
	if s.opts.PexelsAPIKey != "" {
		images, err := s.searchPexels(ctx, query, count)
		if err == nil {
			return images, false
		}
		log.Warn().Err(err).Str("query", query).Msg("pexels search failed, falling back to unsplash")
	}
	if s.opts.UnsplashAccessKey != "" {
		images, err := s.searchUnsplash(ctx, query, count)
		if err == nil {
			return images, false
		}
		log.Warn().Err(err).Str("query", query).Msg("unsplash search failed, falling back to unsplash source")
	}
	return s.sourceImages(query, count), true
}

type pexelsResponse struct {
	Photos []struct {
		ID  int64 `json:"id"`
		Src struct {
			Large  string `json:"large"`
			Medium string `json:"medium"`
		} `json:"src"`
		Photographer    string `json:"photographer"`
		PhotographerURL string `json:"photographer_url"`
		Alt             string `json:"alt"`
	} `json:"photos"`
}

func (s *ImageSearchService) searchPexels(ctx context.Context, query string, count int) ([]models.OutfitImage, error) {
	var out pexelsResponse
	if err := s.getJSON(ctx, s.opts.PexelsBaseURL+"/search", query, count, s.opts.PexelsAPIKey, &out); err != nil {
		return nil, fmt.Errorf("pexels: %w", err)
	}
	images := make([]models.OutfitImage, 0, len(out.Photos))
	for _, photo := range out.Photos {
		images = append(images, models.OutfitImage{
			ID:              strconv.FormatInt(photo.ID, 10),
			URL:             photo.Src.Large,
			Thumbnail:       photo.Src.Medium,
			Photographer:    StrPointer(photo.Photographer),
			PhotographerURL: StrPointer(photo.PhotographerURL),
			Description:     StrPointer(photo.Alt),
		})
	}
	return images, nil
}

type unsplashResponse struct {
	Results []struct {
		ID   string `json:"id"`
		URLs struct {
			Regular string `json:"regular"`
			Thumb   string `json:"thumb"`
		} `json:"urls"`
		User struct {
			Name  string `json:"name"`
			Links struct {
				HTML string `json:"html"`
			} `json:"links"`
		} `json:"user"`
		Description    *string `json:"description"`
		AltDescription *string `json:"alt_description"`
	} `json:"results"`
}

func (s *ImageSearchService) searchUnsplash(ctx context.Context, query string, count int) ([]models.OutfitImage, error) {
	ctx, cancel := context.WithTimeout(ctx, unsplashTimeout)
	defer cancel()

	var out unsplashResponse
	if err := s.getJSON(ctx, s.opts.UnsplashBaseURL+"/search/photos", query, count, "Client-ID "+s.opts.UnsplashAccessKey, &out); err != nil {
		return nil, fmt.Errorf("unsplash: %w", err)
	}
	images := make([]models.OutfitImage, 0, len(out.Results))
	for _, photo := range out.Results {
		description := photo.Description
		if description == nil || *description == "" {
			description = photo.AltDescription
		}
		images = append(images, models.OutfitImage{
			ID:              photo.ID,
			URL:             photo.URLs.Regular,
			Thumbnail:       photo.URLs.Thumb,
			Photographer:    StrPointer(photo.User.Name),
			PhotographerURL: StrPointer(photo.User.Links.HTML),
			Description:     description,
		})
	}
	return images, nil
}

func (s *ImageSearchService) getJSON(ctx context.Context, endpoint, query string, count int, authorization string, out any) error {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(count))
	params.Set("orientation", "portrait")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", authorization)

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// sourceImages builds keyless links from up to three key terms of the query.
func (s *ImageSearchService) sourceImages(query string, count int) []models.OutfitImage {
	var terms []string
	for _, term := range strings.Split(languageutil.Lower(query), " ") {
		if term == "" || slices.Contains(sourceStopWords, term) {
			continue
		}
		terms = append(terms, term)
		if len(terms) == 3 {
			break
		}
	}
	keyTerms := strings.Join(terms, ",")
	if keyTerms == "" {
		keyTerms = "fashion outfit"
	}

	escaped := url.QueryEscape(keyTerms)
	timestamp := s.opts.Now().UnixMilli()
	description := "Outfit inspiration: " + keyTerms
	images := make([]models.OutfitImage, 0, count)
	for i := 0; i < count; i++ {
		images = append(images, models.OutfitImage{
			ID:          fmt.Sprintf("unsplash-source-%d-%d", i, timestamp),
			URL:         fmt.Sprintf("%s/600x800/?%s,fashion&sig=%d", s.opts.SourceBaseURL, escaped, i),
			Thumbnail:   fmt.Sprintf("%s/300x400/?%s,fashion&sig=%d", s.opts.SourceBaseURL, escaped, i),
			Description: &description,
		})
	}
	return images
}
