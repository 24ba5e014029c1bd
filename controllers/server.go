package controllers

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"outfitapi/models"
	"outfitapi/services"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return &ValidationError{Message: firstValidationIssue(err)}
	}
	return nil
}

func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("occasion", models.ValidateOccasion)
	v.RegisterValidation("fit", models.ValidateFit)
	v.RegisterValidation("weather", models.ValidateWeather)
	v.RegisterValidation("budget", models.ValidateBudget)
	v.RegisterValidation("itemimage", models.ValidateItemImage)
	v.RegisterValidation("variationname", models.ValidateVariationName)
	v.RegisterValidation("bodyzone", models.ValidateBodyZone)
	return &CustomValidator{validator: v}
}

// Dependencies wires the services the handlers use. DB, URLCache and Recorder are
// optional; history endpoints answer 503 without a database.
type Dependencies struct {
	DB          *gorm.DB
	Generator   services.OutfitGeneratorProvider
	ImageSearch services.ImageSearchServiceProvider
	Recorder    services.HistoryRecorder
	URLCache    services.URLCacheServiceProvider

	GenerateLimiter services.RateLimitStore
	ImageLimiter    services.RateLimitStore

	// Now defaults to time.Now.
	Now func() time.Time
}

func SetupServer(deps Dependencies) *echo.Echo {
	if deps.Recorder == nil {
		deps.Recorder = services.NoopHistoryRecorder{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", deps.DB)
			return next(c)
		}
	})
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(RequestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		ExposeHeaders: []string{echo.HeaderRetryAfter, echo.HeaderXRequestID},
	}))

	e.GET("/healthcheck", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	outfitController := OutfitController{
		Generator:   deps.Generator,
		ImageSearch: deps.ImageSearch,
		Recorder:    deps.Recorder,
		URLCache:    deps.URLCache,

		GenerateLimiter: deps.GenerateLimiter,
		ImageLimiter:    deps.ImageLimiter,

		Now: deps.Now,
	}
	outfitController.OutfitRoutes(e.Group(""))

	return e
}
