package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/urlrisk/internal/api"
	"github.com/khanhnv2901/urlrisk/internal/cache"
	"github.com/khanhnv2901/urlrisk/internal/checker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run urlrisk as a REST API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyConfigDefaults(cmd)

		addr, _ := cmd.Flags().GetString("addr")
		authToken, _ := cmd.Flags().GetString("auth-token")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
		corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origins")
		rateLimit, _ := cmd.Flags().GetInt("rate-limit")
		rateBurst, _ := cmd.Flags().GetInt("rate-burst")
		withML, _ := cmd.Flags().GetBool("with-ml")
		analysisRPS, _ := cmd.Flags().GetInt("analysis-rps")

		modelPath := viper.GetString("ml_model_path")

		var limiter *rate.Limiter
		if analysisRPS > 0 {
			limiter = rate.NewLimiter(rate.Limit(analysisRPS), analysisRPS)
		}

		analyzer := checker.NewAnalyzer(checker.AnalyzerConfig{
			CheckTimeout: configuredTimeout(),
			EnableML:     withML,
			MLModelPath:  modelPath,
			Limiter:      limiter,
			Cache:        cache.New(configuredCacheTTL()),
			Logger:       logger,
		})

		server := api.NewServer(api.Config{
			Analyzer:    analyzer,
			Health:      &healthAPIService{},
			AuthToken:   authToken,
			Logger:      logger,
			CORSOrigins: corsOrigins,
			RateLimit:   rateLimit,
			RateBurst:   rateBurst,
		})

		httpServer := &http.Server{
			Addr:         addr,
			Handler:      server,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("%s API server listening on %s\n", colorInfo("→"), addr)
			fmt.Printf("%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Printf("\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			fmt.Printf("%s Server shutdown complete\n", colorSuccess("✓"))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Address for the API server")
	serveCmd.Flags().String("auth-token", "", "Optional shared secret for API requests")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	serveCmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (empty = allow all)")
	serveCmd.Flags().Int("rate-limit", 10, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().Int("rate-burst", 20, "Rate limit burst size")
	serveCmd.Flags().Bool("with-ml", false, "Include the ML classifier signal")
	serveCmd.Flags().Int("analysis-rps", 0, "Global outbound analysis rate limit (0 = disabled)")
	rootCmd.AddCommand(serveCmd)
}

type healthAPIService struct{}

func (s *healthAPIService) Check(ctx context.Context) error { return nil }

func (s *healthAPIService) Ready(ctx context.Context) error { return nil }
