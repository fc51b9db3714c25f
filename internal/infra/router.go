package infra

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/docker/go-units"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"
	_ "github.com/umalmyha/customer-records/docs" // registers swagger docs
	"github.com/umalmyha/customer-records/internal/config"
	apperrors "github.com/umalmyha/customer-records/internal/errors"
	"github.com/umalmyha/customer-records/internal/handlers"
	"github.com/umalmyha/customer-records/internal/middleware"
	"github.com/umalmyha/customer-records/internal/service"
	"github.com/umalmyha/customer-records/internal/storage"
	"github.com/umalmyha/customer-records/internal/validation"
	"golang.org/x/time/rate"
)

const internalErrMessage = "Internal server error"

// RouterDeps is everything http router is built from
type RouterDeps struct {
	CustomerSvc  service.CustomerService
	PhotoStorage storage.PhotoStorage
	Registry     *prometheus.Registry
	Logger       logrus.FieldLogger
}

// Router builds echo application serving customers api
func Router(cfg config.Config, deps RouterDeps) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(e, deps.Logger)

	// Validator
	v, translator, err := validation.English()
	if err != nil {
		return nil, err
	}
	e.Validator = validation.Echo(v, translator)

	// Metrics
	metrics, err := middleware.NewMetrics(deps.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register http metrics - %w", err)
	}

	// Middleware
	e.Use(echoMiddleware.Recover())
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestLogger(deps.Logger))

	// Handlers
	customerHandler := handlers.NewCustomerHTTPHandler(deps.CustomerSvc, cfg.ListCfg.DefaultPageSize)
	photoHandler := handlers.NewPhotoHTTPHandler(deps.PhotoStorage)

	// API routes
	api := e.Group("/api", echoMiddleware.RateLimiter(
		echoMiddleware.NewRateLimiterMemoryStore(rate.Limit(cfg.HTTPCfg.RateLimitRPS)),
	))

	// customers
	bodyLimit := fmt.Sprintf("%dK", (cfg.PhotoCfg.MaxSize()+units.MiB)/units.KiB)
	customersAPI := api.Group("/customers", echoMiddleware.BodyLimit(bodyLimit))
	customersAPI.GET("", customerHandler.List)
	customersAPI.GET("/search", customerHandler.Search)
	customersAPI.GET("/:id", customerHandler.Get)
	customersAPI.POST("", customerHandler.Post)
	customersAPI.PUT("/:id", customerHandler.Put)
	customersAPI.DELETE("/:id", customerHandler.DeleteByID)

	// statistics
	api.GET("/statistics", customerHandler.Statistics)

	// photos
	api.GET("/photos/*", photoHandler.Download)

	// metrics
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// swagger
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e, nil
}

func errorHandler(e *echo.Echo, logger logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			pldErr      *validation.PayloadError
			validErr    *apperrors.ValidationErr
			notFoundErr *apperrors.NotFoundErr
			httpErr     *echo.HTTPError
		)

		switch {
		case errors.As(err, &pldErr):
			err = c.JSON(http.StatusBadRequest, pldErr)
		case errors.As(err, &validErr):
			err = c.JSON(http.StatusBadRequest, validErr)
		case errors.As(err, &notFoundErr):
			err = c.JSON(http.StatusNotFound, echo.Map{"message": notFoundErr.Error()})
		case errors.As(err, &httpErr):
			if httpErr.Code >= http.StatusInternalServerError {
				logger.Errorf("error occurred on http request processing - %v", err)
			}
			e.DefaultHTTPErrorHandler(err, c)
			return
		default:
			logger.Errorf("error occurred on http request processing - %v", err)
			err = c.JSON(http.StatusInternalServerError, echo.Map{"message": internalErrMessage})
		}

		if err != nil {
			logger.Errorf("failed to send error response - %v", err)
		}
	}
}
