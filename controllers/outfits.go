package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"outfitapi/models"
	"outfitapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeConfig              = "CONFIG_ERROR"
	CodeQuotaExceeded       = "QUOTA_EXCEEDED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInvalidResponse     = "INVALID_RESPONSE"
	CodeQueryTooLong        = "QUERY_TOO_LONG"
	CodeNotFound            = "NOT_FOUND"
)

// default hint when a quota error carries no Retry-After of its own
const quotaRetryAfterSeconds = 60

const recordTimeout = 5 * time.Second

type PreferencesIn struct {
	Occasion models.Occasion `json:"occasion" validate:"required,occasion"`
	Vibe     *int            `json:"vibe" validate:"required,min=0,max=100"`
	Fit      models.Fit      `json:"fit" validate:"required,fit"`
	Weather  models.Weather  `json:"weather" validate:"required,weather"`
	Budget   models.Budget   `json:"budget" validate:"required,budget"`
}

func (p PreferencesIn) ToModel() models.OutfitPreferences {
	preferences := models.OutfitPreferences{
		Occasion: p.Occasion,
		Fit:      p.Fit,
		Weather:  p.Weather,
		Budget:   p.Budget,
	}
	if p.Vibe != nil {
		preferences.Vibe = *p.Vibe
	}
	return preferences
}

type GenerateOutfitRequest struct {
	UserItems   []models.UserItem `json:"userItems" validate:"required,min=1,max=20,dive"`
	Preferences *PreferencesIn    `json:"preferences" validate:"required"`
}

type OutfitItemIn struct {
	ItemType            string   `json:"item_type" validate:"required"`
	Description         string   `json:"description" validate:"required"`
	Color               string   `json:"color" validate:"required"`
	Material            *string  `json:"material"`
	StyleTags           []string `json:"style_tags" validate:"required"`
	WhyItMatches        string   `json:"why_it_matches" validate:"required"`
	BodyZone            string   `json:"body_zone" validate:"required,bodyzone"`
	ShoppingSearchTerms *string  `json:"shopping_search_terms"`
}

type OutfitVariationIn struct {
	Name         string         `json:"name" validate:"required,variationname"`
	Suggestion   string         `json:"suggestion"`
	Items        []OutfitItemIn `json:"items" validate:"required,dive"`
	ColorPalette []string       `json:"color_palette" validate:"required"`
	StylingTips  []string       `json:"styling_tips" validate:"required"`
}

func (v OutfitVariationIn) ToModel() models.OutfitVariation {
	variation := models.OutfitVariation{
		Name:         models.VariationName(v.Name),
		Suggestion:   v.Suggestion,
		ColorPalette: v.ColorPalette,
		StylingTips:  v.StylingTips,
	}
	for _, item := range v.Items {
		variation.Items = append(variation.Items, models.OutfitItem{
			ItemType:            item.ItemType,
			Description:         item.Description,
			Color:               item.Color,
			Material:            item.Material,
			StyleTags:           item.StyleTags,
			WhyItMatches:        item.WhyItMatches,
			BodyZone:            models.BodyZone(item.BodyZone),
			ShoppingSearchTerms: item.ShoppingSearchTerms,
		})
	}
	return variation
}

type SearchOutfitImagesRequest struct {
	Variation *OutfitVariationIn `json:"variation" validate:"required"`
	Count     *int               `json:"count" validate:"omitempty,min=1,max=10"`
}

type GenerateOutfitResponse struct {
	Variations []models.OutfitVariation `json:"variations"`
}

type SearchOutfitImagesResponse struct {
	Images []models.OutfitImage `json:"images"`
}

type GenerationResponse struct {
	RequestID   string                   `json:"request_id"`
	Status      string                   `json:"status"`
	Provider    *string                  `json:"provider"`
	LLMModel    *string                  `json:"llm_model"`
	ItemCount   int                      `json:"item_count"`
	ErrorCode   *string                  `json:"error_code"`
	Duration    *float64                 `json:"duration"`
	CreatedAt   string                   `json:"created_at"`
	Variations  []models.OutfitVariation `json:"variations,omitempty"`
	SnapshotURL *string                  `json:"snapshot_url,omitempty"`
}

type OutfitController struct {
	Generator   services.OutfitGeneratorProvider
	ImageSearch services.ImageSearchServiceProvider
	Recorder    services.HistoryRecorder
	URLCache    services.URLCacheServiceProvider

	GenerateLimiter services.RateLimitStore
	ImageLimiter    services.RateLimitStore

	Now func() time.Time
}

func (controller *OutfitController) OutfitRoutes(g *echo.Group) {
	g.POST("/generate-outfit", controller.GenerateOutfit, RateLimitMiddleware(controller.GenerateLimiter, "ratelimit:", controller.Now))
	g.POST("/search-outfit-images", controller.SearchOutfitImages, RateLimitMiddleware(controller.ImageLimiter, "imagesearch:", controller.Now))
	g.GET("/generations/:id", controller.GetGeneration)
}

func (controller *OutfitController) GenerateOutfit(c echo.Context) error {
	var req GenerateOutfitRequest
	if body, ok := decodeRequest(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, body)
	}

	ctx := c.Request().Context()
	started := controller.Now()
	userItems := req.UserItems
	preferences := req.Preferences.ToModel()

	generation, err := controller.Generator.Generate(ctx, userItems, preferences)

	record := services.GenerationRecord{
		RequestID:   c.Response().Header().Get(echo.HeaderXRequestID),
		ClientIP:    ClientIP(c.Request()),
		ItemCount:   len(userItems),
		Preferences: preferences,
		Duration:    controller.Now().Sub(started),
		RecordedAt:  started,
	}
	if err != nil {
		status, body := generationErrorResponse(c, err)
		record.ErrorCode = body["code"]
		record.Error = err.Error()
		controller.record(ctx, record)
		return c.JSON(status, body)
	}

	record.Provider = generation.Provider
	record.Model = generation.Model
	record.Prompt = generation.Prompt
	record.Result = generation.Result
	controller.record(ctx, record)

	return c.JSON(http.StatusOK, GenerateOutfitResponse{Variations: generation.Result.Variations})
}

// generationErrorResponse maps pipeline failures to fixed codes; provider text never
// reaches the caller.
func generationErrorResponse(c echo.Context, err error) (int, map[string]string) {
	var configErr *services.ConfigError
	var quotaErr *services.QuotaError
	var shapeErr *services.ResponseShapeError
	var providerErr *services.ProviderError

	switch {
	case errors.As(err, &configErr):
		log.Error().Err(err).Msg("no AI provider configured")
		return http.StatusInternalServerError, map[string]string{"error": "AI service configuration error", "code": CodeConfig}
	case errors.As(err, &quotaErr):
		retryAfter := int(quotaErr.RetryAfter.Seconds())
		if retryAfter <= 0 {
			retryAfter = quotaRetryAfterSeconds
		}
		c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(retryAfter))
		log.Warn().Err(err).Str("provider", quotaErr.Provider).Msg("all providers out of quota")
		return http.StatusServiceUnavailable, map[string]string{"error": "AI service quota exceeded", "code": CodeQuotaExceeded}
	case errors.As(err, &shapeErr):
		captureGenerationError(c, err, shapeErr.Provider)
		return http.StatusInternalServerError, map[string]string{"error": "AI service returned an invalid response", "code": CodeInvalidResponse}
	case errors.As(err, &providerErr):
		if providerErr.StatusCode == http.StatusTooManyRequests {
			c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(quotaRetryAfterSeconds))
		}
		captureGenerationError(c, err, providerErr.Provider)
		return http.StatusServiceUnavailable, map[string]string{"error": "AI service temporarily unavailable", "code": CodeUpstreamUnavailable}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, map[string]string{"error": "AI service temporarily unavailable", "code": CodeUpstreamUnavailable}
	case errors.Is(err, context.Canceled):
		log.Info().Msg("generation cancelled by client")
		return http.StatusInternalServerError, map[string]string{"error": "Failed to generate outfit"}
	}
	captureGenerationError(c, err, "")
	return http.StatusInternalServerError, map[string]string{"error": "Failed to generate outfit"}
}

func captureGenerationError(c echo.Context, err error, provider string) {
	log.Error().Err(err).Str("provider", provider).Msg("outfit generation failed")
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
		if provider != "" {
			scope.SetTag("provider", provider)
		}
		sentry.CaptureException(err)
	})
}

func (controller *OutfitController) record(ctx context.Context, record services.GenerationRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := controller.Recorder.Record(ctx, record); err != nil {
		log.Error().Err(err).Str("request_id", record.RequestID).Msg("failed to enqueue generation record")
	}
}

func (controller *OutfitController) SearchOutfitImages(c echo.Context) error {
	var req SearchOutfitImagesRequest
	if body, ok := decodeRequest(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, body)
	}

	count := services.DefaultImageCount
	if req.Count != nil {
		// omitempty lets an explicit zero through the validator
		if *req.Count < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "count: Number must be greater than or equal to 1", "code": CodeValidation})
		}
		count = *req.Count
	}
	variation := req.Variation.ToModel()

	images, err := controller.ImageSearch.Search(c.Request().Context(), variation, count)
	if errors.Is(err, services.ErrQueryTooLong) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Search query too long", "code": CodeQueryTooLong})
	}
	if err != nil {
		log.Error().Err(err).Str("variation", string(variation.Name)).Msg("image search failed")
		images = []models.OutfitImage{}
	}
	if images == nil {
		images = []models.OutfitImage{}
	}
	return c.JSON(http.StatusOK, SearchOutfitImagesResponse{Images: images})
}

func (controller *OutfitController) GetGeneration(c echo.Context) error {
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok || db == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Generation history is not available", "code": CodeUpstreamUnavailable})
	}

	requestID := c.Param("id")
	row, err := services.FindGeneration(c.Request().Context(), db, requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Generation not found", "code": CodeNotFound})
	}
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load generation"})
	}

	resp := GenerationResponse{
		RequestID: row.RequestID,
		Status:    row.Status,
		Provider:  row.Provider,
		LLMModel:  row.LLMModel,
		ItemCount: row.ItemCount,
		ErrorCode: row.ErrorCode,
		Duration:  row.Duration,
		CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
	}
	if row.Result != nil {
		var result models.GenerationResult
		if err := json.Unmarshal([]byte(*row.Result), &result); err == nil {
			resp.Variations = result.Variations
		}
	}
	if row.SnapshotKey != nil && controller.URLCache != nil {
		url, err := controller.URLCache.GetReadURL(c.Request().Context(), *row.SnapshotKey)
		if err != nil {
			log.Error().Err(err).Str("request_id", requestID).Msg("failed to presign snapshot")
		} else if url != "" {
			resp.SnapshotURL = &url
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// decodeRequest binds and validates req. On failure it returns the 400 body to send.
func decodeRequest(c echo.Context, req interface{}) (map[string]string, bool) {
	if err := c.Bind(req); err != nil {
		if message, ok := bindIssue(err); ok {
			return map[string]string{"error": message, "code": CodeValidation}, false
		}
		return map[string]string{"error": "Invalid JSON in request body"}, false
	}
	if err := c.Validate(req); err != nil {
		return map[string]string{"error": err.Error(), "code": CodeValidation}, false
	}
	return nil, true
}
