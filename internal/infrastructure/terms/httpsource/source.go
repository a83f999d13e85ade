package httpsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/infrastructure/resilience"
)

// Source fetches coverage terms from the external terms directory. A
// client-side rate limiter keeps lookups inside the directory's quota;
// the resilience executor retries transient failures and trips when the
// directory is down so the pipeline falls back fast.
type Source struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(baseURL string, lookupsPerMinute int, executor *resilience.Executor) *Source {
	if lookupsPerMinute <= 0 {
		lookupsPerMinute = 30
	}
	return &Source{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(lookupsPerMinute)), lookupsPerMinute),
		executor:   executor,
	}
}

type termsResponse struct {
	DurationMonths int      `json:"duration_months"`
	Terms          []string `json:"terms"`
	Exclusions     []string `json:"exclusions"`
	ClaimSteps     []string `json:"claim_steps"`
}

func (s *Source) Fetch(ctx context.Context, brand, model string) (*domain.TermsEntry, error) {
	if strings.TrimSpace(brand) == "" {
		return nil, errors.New("terms lookup needs a brand")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("terms rate limit wait: %w", err)
	}

	var out termsResponse
	call := func(ctx context.Context) error {
		return s.get(ctx, brand, model, &out)
	}

	var err error
	if s.executor != nil {
		err = s.executor.Do(ctx, "terms_lookup", call, transient)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	if out.DurationMonths <= 0 && len(out.Terms) == 0 {
		return nil, errors.New("terms directory returned an empty entry")
	}

	return &domain.TermsEntry{
		Brand:          brand,
		Model:          model,
		DurationMonths: out.DurationMonths,
		Terms:          out.Terms,
		Exclusions:     out.Exclusions,
		ClaimSteps:     out.ClaimSteps,
	}, nil
}

func (s *Source) get(ctx context.Context, brand, model string, out *termsResponse) error {
	query := url.Values{}
	query.Set("brand", brand)
	if model != "" {
		query.Set("model", model)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/terms?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create terms request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("terms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("no terms entry for %s %s", brand, model)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if trimmed := strings.TrimSpace(string(msg)); trimmed != "" {
			return fmt.Errorf("terms status: %s: %s", resp.Status, trimmed)
		}
		return fmt.Errorf("terms status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode terms response: %w", err)
	}
	return nil
}

func transient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "status: 5")
}
