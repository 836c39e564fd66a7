// Package main is the entrypoint for the webhook processor Lambda function.
//
// The function sits behind API Gateway proxy integration: RevenueCat posts
// to the gateway, the gateway invokes this Lambda, and the proxy event is
// adapted onto the same chi router used by cmd/api so both deployment
// shapes share one handler chain.
//
// Cold start (main):
//  1. Load configuration (SSM-backed secrets resolved once).
//  2. Initialize structured logger, PostgreSQL pool, AWS clients.
//  3. Build the billing pipeline (reconciler + janitor) and the router.
//  4. Register the handler and call lambda.Start.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"nourish/internal/api/handlers"
	"nourish/internal/billing"
	"nourish/internal/config"
	"nourish/internal/core"
	"nourish/internal/db"
	"nourish/internal/observability"
	"nourish/internal/ops"
)

func main() {
	h, err := newHandler()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

// handler holds the cold-start dependencies for the Lambda handler.
type handler struct {
	router http.Handler
	logger *slog.Logger
}

// newHandler performs cold-start initialization.
func newHandler() (*handler, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("nourish webhook lambda cold start",
		"environment", cfg.Environment,
		"service", cfg.Service,
	)

	dbURL := cfg.Database.URL.Unmask()
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required in lambda mode")
	}

	poolCfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	// Lambda containers handle one request at a time; a large pool only
	// burns connections on the database side.
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.Database.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	store := db.NewUserRepo(pool, logger)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	var notifier billing.CleanupNotifier
	if cfg.AWS.OpsQueueURL != "" {
		notifier = ops.NewSQSNotifier(sqs.NewFromConfig(awsCfg), cfg.AWS.OpsQueueURL, logger)
	}

	var recorder handlers.EventRecorder
	if cfg.Observability.EnableMetrics {
		recorder = observability.NewEventMetrics(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace,
			logger,
		)
	}

	janitor := billing.NewJanitor(store, notifier, logger)
	reconciler := billing.NewReconciler(store, janitor, logger)

	webhook := handlers.NewRevenueCatWebhookHandler(
		func() string { return cfg.Webhook.AuthToken.Unmask() },
		reconciler,
		recorder,
		logger,
	)

	srv, err := core.NewServer(cfg, logger, webhook)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.MountRoutes()

	return &handler{router: srv.Handler(), logger: logger}, nil
}

// Handle adapts one API Gateway proxy event onto the chi router.
func (h *handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := proxyEventToRequest(ctx, event)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to adapt proxy event", "error", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":"Internal server error"}`,
		}, nil
	}

	rw := newProxyResponseWriter()
	h.router.ServeHTTP(rw, req)

	return rw.response(), nil
}

// proxyEventToRequest converts an API Gateway proxy event into an
// *http.Request the router can serve.
func proxyEventToRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 body: %w", err)
		}
		body = string(decoded)
	}

	path := event.Path
	if path == "" {
		path = "/"
	}

	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, path, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for name, value := range event.Headers {
		req.Header.Set(name, value)
	}
	for name, values := range event.MultiValueHeaders {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	if event.RequestContext.Identity.SourceIP != "" {
		req.RemoteAddr = event.RequestContext.Identity.SourceIP
	}

	return req, nil
}

// proxyResponseWriter is a minimal http.ResponseWriter that buffers the
// response for conversion back into an API Gateway proxy response.
type proxyResponseWriter struct {
	headers http.Header
	body    bytes.Buffer
	status  int
	written bool
}

func newProxyResponseWriter() *proxyResponseWriter {
	return &proxyResponseWriter{
		headers: make(http.Header),
		status:  http.StatusOK,
	}
}

func (w *proxyResponseWriter) Header() http.Header {
	return w.headers
}

func (w *proxyResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
}

func (w *proxyResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.body.Write(b)
}

func (w *proxyResponseWriter) response() events.APIGatewayProxyResponse {
	headers := make(map[string]string, len(w.headers))
	for name, values := range w.headers {
		headers[name] = strings.Join(values, ",")
	}

	return events.APIGatewayProxyResponse{
		StatusCode: w.status,
		Headers:    headers,
		Body:       w.body.String(),
	}
}

// newLogger creates a structured slog.Logger configured for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
