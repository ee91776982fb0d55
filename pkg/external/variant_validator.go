// Package external holds clients of remote services used during curation.
package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/phetools-curation-server/internal/domain"
)

const (
	defaultVariantValidatorURL = "https://rest.variantvalidator.org/"
	variantValidatorPath       = "VariantValidator/variantvalidator"
	assemblyHG38               = "hg38"
)

// VariantValidatorClient resolves HGVS expressions to genomic coordinates
// with the VariantValidator REST API. Results are cached per
// transcript and expression.
type VariantValidatorClient struct {
	baseURL    string
	assembly   string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *lru.Cache[string, domain.HgvsVariant]
	logger     *logrus.Logger
}

// NewVariantValidatorClient creates a client. Only GRCh38 (hg38) is
// supported.
func NewVariantValidatorClient(config domain.VariantValidatorConfig, logger *logrus.Logger) (*VariantValidatorClient, error) {
	assembly, err := normalizeAssembly(config.GenomeAssembly)
	if err != nil {
		return nil, err
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultVariantValidatorURL
	}
	if !strings.HasSuffix(config.BaseURL, "/") {
		config.BaseURL += "/"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 1000
	}

	cache, err := lru.New[string, domain.HgvsVariant](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create variant cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "VariantValidator",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// A rejected expression is an answer, not an outage
			var rejected *RejectedVariantError
			return err == nil || errors.As(err, &rejected)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker changed state")
		},
	})

	return &VariantValidatorClient{
		baseURL:    config.BaseURL,
		assembly:   assembly,
		httpClient: &http.Client{Timeout: config.Timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:    breaker,
		cache:      cache,
		logger:     logger,
	}, nil
}

func normalizeAssembly(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "hg38", "grch38":
		return assemblyHG38, nil
	}
	return "", fmt.Errorf("unsupported genome assembly: %s", name)
}

// RejectedVariantError is returned when VariantValidator answers but does not
// accept the expression.
type RejectedVariantError struct {
	HGVS       string
	Transcript string
	Reason     string
}

func (e *RejectedVariantError) Error() string {
	return fmt.Sprintf("%s:%s rejected by VariantValidator: %s", e.Transcript, e.HGVS, e.Reason)
}

// ValidateHGVS implements domain.VariantValidator.
func (c *VariantValidatorClient) ValidateHGVS(ctx context.Context, hgvs, transcript string) (*domain.HgvsVariant, error) {
	key := transcript + ":" + hgvs
	if v, ok := c.cache.Get(key); ok {
		return &v, nil
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, hgvs, transcript)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.NewMCPError(domain.ErrExternalAPI, "VariantValidator is unavailable", err.Error(), "")
		}
		return nil, err
	}

	variant := result.(*domain.HgvsVariant)
	c.cache.Add(key, *variant)
	c.logger.WithFields(logrus.Fields{
		"hgvs":       hgvs,
		"transcript": transcript,
		"chr":        variant.Chr,
		"position":   variant.Position,
	}).Debug("Validated HGVS variant")
	return variant, nil
}

// requestURL follows the VariantValidator path scheme
// {assembly}/{transcript}:{hgvs}/{transcript}.
func (c *VariantValidatorClient) requestURL(hgvs, transcript string) string {
	return fmt.Sprintf("%s%s/%s/%s%%3A%s/%s?content-type=application%%2Fjson",
		c.baseURL, variantValidatorPath, c.assembly,
		url.PathEscape(transcript), url.PathEscape(hgvs), url.PathEscape(transcript))
}

func (c *VariantValidatorClient) fetch(ctx context.Context, hgvs, transcript string) (*domain.HgvsVariant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(hgvs, transcript), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to VariantValidator failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("VariantValidator returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return parseVariantValidatorResponse(body, hgvs, transcript, c.assembly)
}

type vvLocus struct {
	HGVSGenomicDescription string `json:"hgvs_genomic_description"`
	VCF                    struct {
		Chr string `json:"chr"`
		Pos string `json:"pos"`
		Ref string `json:"ref"`
		Alt string `json:"alt"`
	} `json:"vcf"`
}

type vvVariant struct {
	GeneSymbol string `json:"gene_symbol"`
	GeneIDs    struct {
		HGNCID string `json:"hgnc_id"`
	} `json:"gene_ids"`
	HGVSTranscriptVariant string             `json:"hgvs_transcript_variant"`
	PrimaryAssemblyLoci   map[string]vvLocus `json:"primary_assembly_loci"`
}

type vvWarning struct {
	ValidationWarnings []string `json:"validation_warnings"`
}

// parseVariantValidatorResponse reads the single variant entry keyed by the
// normalized HGVS next to "flag" and "metadata".
func parseVariantValidatorResponse(body []byte, hgvs, transcript, assembly string) (*domain.HgvsVariant, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode VariantValidator response: %w", err)
	}

	var flag string
	if raw, ok := doc["flag"]; ok {
		if err := json.Unmarshal(raw, &flag); err != nil {
			return nil, fmt.Errorf("malformed flag: %w", err)
		}
	}
	reject := func(reason string) error {
		return &RejectedVariantError{HGVS: hgvs, Transcript: transcript, Reason: reason}
	}

	switch flag {
	case "gene_variant":
	case "warning":
		var w vvWarning
		if raw, ok := doc["validation_warning_1"]; ok && json.Unmarshal(raw, &w) == nil && len(w.ValidationWarnings) > 0 {
			return nil, reject(w.ValidationWarnings[0])
		}
		return nil, reject("invalid HGVS")
	default:
		return nil, reject(fmt.Sprintf("expected a gene_variant but got %q", flag))
	}

	var entry json.RawMessage
	for k, raw := range doc {
		if k != "flag" && k != "metadata" {
			entry = raw
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("missing variant entry in VariantValidator response")
	}

	var v vvVariant
	if err := json.Unmarshal(entry, &v); err != nil {
		return nil, fmt.Errorf("malformed variant entry: %w", err)
	}
	switch {
	case v.GeneIDs.HGNCID == "":
		return nil, fmt.Errorf("missing hgnc_id")
	case v.GeneSymbol == "":
		return nil, fmt.Errorf("missing gene_symbol")
	case v.HGVSTranscriptVariant == "":
		return nil, fmt.Errorf("missing hgvs_transcript_variant")
	}
	locus, ok := v.PrimaryAssemblyLoci[assembly]
	if !ok {
		return nil, fmt.Errorf("could not identify %s in response", assembly)
	}
	pos, err := strconv.ParseUint(locus.VCF.Pos, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("malformed pos %q: %w", locus.VCF.Pos, err)
	}
	if locus.VCF.Chr == "" || locus.VCF.Ref == "" || locus.VCF.Alt == "" {
		return nil, fmt.Errorf("incomplete vcf element for %s", assembly)
	}

	// hgvs_transcript_variant is NM_000138.5:c.8242G>T
	tx, _, _ := strings.Cut(v.HGVSTranscriptVariant, ":")

	return &domain.HgvsVariant{
		Assembly:   assembly,
		Chr:        locus.VCF.Chr,
		Position:   uint32(pos),
		RefAllele:  locus.VCF.Ref,
		AltAllele:  locus.VCF.Alt,
		Symbol:     v.GeneSymbol,
		HGNCID:     v.GeneIDs.HGNCID,
		HGVS:       hgvs,
		Transcript: tx,
		GHGVS:      locus.HGVSGenomicDescription,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ domain.VariantValidator = (*VariantValidatorClient)(nil)
