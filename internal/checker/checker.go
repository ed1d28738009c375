package checker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	consts "github.com/khanhnv2901/urlrisk/internal/shared/constants"
	sharederrors "github.com/khanhnv2901/urlrisk/internal/shared/errors"
)

// ResultBundle carries every checker's output for one URL, plus per-checker
// timings (milliseconds) and error lists.
type ResultBundle struct {
	SSL      *SSLResult     `json:"ssl"`
	Whois    *WhoisResult   `json:"whois"`
	IDN      *IDNResult     `json:"idn"`
	Rules    *RulesResult   `json:"rules"`
	Keywords *KeywordResult `json:"keywords"`
	Headers  *HeadersResult `json:"headers"`
	ML       *MLResult      `json:"ml,omitempty"`

	Timings map[string]float64  `json:"timings"`
	Errors  map[string][]string `json:"errors"`
}

// Report is the full analysis payload for one URL.
type Report struct {
	URL       string       `json:"url"`
	Results   ResultBundle `json:"results"`
	Reasons   []string     `json:"reasons"`
	RiskScore int          `json:"risk_score"`
	Label     string       `json:"label"`
	CheckedAt time.Time    `json:"checked_at"`
	Cached    bool         `json:"cached,omitempty"`
}

// ResultCache memoizes verdicts keyed by the case-folded raw URL.
type ResultCache interface {
	Get(key string) (Report, bool)
	Set(key string, report Report)
}

// Analyzer runs all checkers concurrently and aggregates their outputs.
// Checkers are independent: a timeout or failure in one never blocks the
// others, and every checker returns a structurally-complete result.
type Analyzer struct {
	CheckTimeout time.Duration
	EnableML     bool

	// Limiter, when set, throttles outbound analysis globally.
	Limiter *rate.Limiter
	Cache   ResultCache
	Logger  *zap.Logger

	ssl      *SSLChecker
	whois    *WhoisChecker
	idn      *IDNChecker
	rules    *RulesChecker
	keywords *KeywordChecker
	headers  *HeadersChecker
	ml       *MLScorer
}

// AnalyzerConfig carries the tunables for NewAnalyzer.
type AnalyzerConfig struct {
	CheckTimeout time.Duration
	EnableML     bool
	MLModelPath  string
	Limiter      *rate.Limiter
	Cache        ResultCache
	Logger       *zap.Logger
}

func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	timeout := cfg.CheckTimeout
	if timeout == 0 {
		timeout = consts.DefaultCheckTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analyzer{
		CheckTimeout: timeout,
		EnableML:     cfg.EnableML,
		Limiter:      cfg.Limiter,
		Cache:        cfg.Cache,
		Logger:       logger,
		ssl:          &SSLChecker{Timeout: timeout},
		whois:        NewWhoisChecker(timeout),
		idn:          &IDNChecker{},
		rules:        &RulesChecker{},
		keywords:     &KeywordChecker{},
		headers:      NewHeadersChecker(timeout),
	}
	if cfg.EnableML {
		a.ml = NewMLScorer(cfg.MLModelPath)
	}
	return a
}

// cacheKey is the case-folded raw URL.
func cacheKey(rawURL string) string {
	return strings.ToLower(strings.TrimSpace(rawURL))
}

// Analyze runs the full pipeline for one URL. It returns an error only for
// empty input; every downstream failure is recorded inside the report.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (Report, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Report{}, sharederrors.ErrEmptyURL
	}

	key := cacheKey(rawURL)
	if a.Cache != nil {
		if cached, ok := a.Cache.Get(key); ok {
			cached.Cached = true
			a.Logger.Debug("cache hit", zap.String("url", rawURL))
			return cached, nil
		}
	}

	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return Report{}, err
		}
	}

	bundle := ResultBundle{
		Timings: map[string]float64{},
		Errors:  map[string][]string{},
	}
	var mu sync.Mutex

	record := func(name string, ms float64, errs []string) {
		mu.Lock()
		defer mu.Unlock()
		bundle.Timings[name] = ms
		bundle.Errors[name] = errs
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, ms := runBounded(gctx, a.CheckTimeout, a.ssl.Check, func() SSLResult {
			return SSLResult{Hostname: ExtractHost(rawURL), Errors: []string{"timeout_error: check exceeded deadline"}}
		}, rawURL)
		bundle.SSL = &res
		record("ssl", ms, res.Errors)
		return nil
	})
	g.Go(func() error {
		res, ms := runBounded(gctx, a.CheckTimeout, a.whois.Check, func() WhoisResult {
			return WhoisResult{Domain: ExtractHost(rawURL), Classification: "Unknown", Errors: []string{"timeout_error: check exceeded deadline"}}
		}, rawURL)
		bundle.Whois = &res
		record("whois", ms, res.Errors)
		return nil
	})
	g.Go(func() error {
		res, ms := runBounded(gctx, a.CheckTimeout, a.idn.Check, func() IDNResult {
			return IDNResult{Hostname: ExtractHost(rawURL), Errors: []string{"timeout_error: check exceeded deadline"}}
		}, rawURL)
		bundle.IDN = &res
		record("idn", ms, res.Errors)
		return nil
	})
	g.Go(func() error {
		res, ms := runBounded(gctx, a.CheckTimeout, a.rules.Check, func() RulesResult {
			return RulesResult{Errors: []string{"timeout_error: check exceeded deadline"}}
		}, rawURL)
		bundle.Rules = &res
		record("rules", ms, res.Errors)
		return nil
	})
	g.Go(func() error {
		res, ms := runBounded(gctx, a.CheckTimeout, a.keywords.Check, func() KeywordResult {
			return KeywordResult{URL: rawURL, Errors: []string{"timeout_error: check exceeded deadline"}}
		}, rawURL)
		bundle.Keywords = &res
		record("keywords", ms, res.Errors)
		return nil
	})
	g.Go(func() error {
		res, ms := runBounded(gctx, a.CheckTimeout, a.headers.Check, func() HeadersResult {
			return HeadersResult{Errors: []string{"timeout_error: check exceeded deadline"}}
		}, rawURL)
		bundle.Headers = &res
		record("headers", ms, res.Errors)
		return nil
	})

	// Checker goroutines never return errors; Wait only synchronizes.
	_ = g.Wait()

	// ML needs the rules and whois outputs, so it runs after the group.
	if a.ml != nil {
		start := time.Now()
		mlRes, err := a.ml.Score(rawURL, bundle.Rules, bundle.Whois)
		ms := float64(time.Since(start).Microseconds()) / 1000.0
		if err != nil {
			if errors.Is(err, sharederrors.ErrModelUnavailable) {
				a.Logger.Warn("ml model unavailable", zap.Error(err))
			} else {
				a.Logger.Warn("ml scoring failed", zap.Error(err))
			}
			record("ml", ms, []string{err.Error()})
		} else {
			bundle.ML = &mlRes
			record("ml", ms, []string{})
		}
	}

	verdict := ComputeRisk(bundle.SSL, bundle.Whois, bundle.IDN, bundle.Rules)

	report := Report{
		URL:       rawURL,
		Results:   bundle,
		Reasons:   verdict.Reasons,
		RiskScore: verdict.Score,
		Label:     verdict.Label,
		CheckedAt: time.Now().UTC(),
	}

	a.Logger.Info("analysis complete",
		zap.String("url", rawURL),
		zap.Int("risk_score", report.RiskScore),
		zap.String("label", report.Label),
		zap.Strings("reasons", report.Reasons),
	)

	if a.Cache != nil {
		a.Cache.Set(key, report)
	}
	return report, nil
}

// runBounded executes one checker under its own deadline. If the checker
// outlives the deadline (a transport that ignores context, say), the
// fallback result is returned and the straggler goroutine is abandoned.
func runBounded[T any](ctx context.Context, timeout time.Duration, check func(context.Context, string) T, onTimeout func() T, target string) (T, float64) {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan T, 1)
	go func() {
		done <- check(checkCtx, target)
	}()

	select {
	case res := <-done:
		return res, float64(time.Since(start).Microseconds()) / 1000.0
	case <-checkCtx.Done():
		return onTimeout(), float64(time.Since(start).Microseconds()) / 1000.0
	}
}
