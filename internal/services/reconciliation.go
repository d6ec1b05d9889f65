package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/coinlens/coinlens-go/internal/models"
	"github.com/coinlens/coinlens-go/internal/utils"
)

// Confidence scores assigned by symbol reconciliation. The three buckets
// are a coarse heuristic kept for dashboard compatibility; the exact
// thresholds carry no statistical meaning.
const (
	ConfidenceExact     = 100
	ConfidencePrefix    = 95
	ConfidenceHeuristic = 90
)

// AssetCatalog is the asset lookup surface reconciliation consumes.
type AssetCatalog interface {
	ListActive(ctx context.Context) ([]models.Asset, error)
	FindByID(ctx context.Context, id int64) (*models.Asset, error)
}

// MappingStore is the unified asset persistence surface.
type MappingStore interface {
	GetOrCreateUnifiedAsset(ctx context.Context, symbol, displayName string) (*models.UnifiedAsset, error)
	UpsertMapping(ctx context.Context, unifiedAssetID, assetID int64, confidence int, method string) error
	FindMappingByAssetID(ctx context.Context, assetID int64) (*models.AssetMapping, error)
	ListMappings(ctx context.Context) ([]models.AssetMapping, error)
}

// MappingReport summarizes one reconciliation run.
type MappingReport struct {
	AssetsConsidered int      `json:"assets_considered"`
	Groups           int      `json:"groups"`
	UnifiedAssets    int      `json:"unified_assets"`
	MappingsUpserted int      `json:"mappings_upserted"`
	Errors           []string `json:"errors"`
}

// ReconciliationService groups per-source assets by normalized symbol
// into unified assets with scored mappings. Re-running is idempotent:
// existing pairs are upserted, never duplicated, and manual mappings are
// never downgraded.
type ReconciliationService struct {
	assets   AssetCatalog
	mappings MappingStore
	caser    cases.Caser
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(assets AssetCatalog, mappings MappingStore) *ReconciliationService {
	return &ReconciliationService{
		assets:   assets,
		mappings: mappings,
		caser:    cases.Title(language.English),
	}
}

type scoredAsset struct {
	asset      models.Asset
	confidence int
}

// GenerateMappings loads all active assets, groups them by normalized
// symbol and upserts a unified asset plus one mapping per member for
// every multi-member group. Singleton groups are skipped; there is
// nothing to reconcile.
func (s *ReconciliationService) GenerateMappings(ctx context.Context) (*MappingReport, error) {
	assets, err := s.assets.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active assets: %w", err)
	}

	groups := make(map[string][]scoredAsset)
	for _, asset := range assets {
		normalized, confidence := NormalizeSymbol(asset.Source, asset.Symbol)
		if normalized == "" {
			continue
		}
		groups[normalized] = append(groups[normalized], scoredAsset{asset: asset, confidence: confidence})
	}

	// Deterministic processing order
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	report := &MappingReport{AssetsConsidered: len(assets), Groups: len(groups)}
	for _, key := range keys {
		members := groups[key]
		if len(members) < 2 {
			continue
		}

		unified, err := s.mappings.GetOrCreateUnifiedAsset(ctx, key, s.displayName(key))
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		report.UnifiedAssets++

		for _, member := range members {
			if err := s.mappings.UpsertMapping(ctx, unified.ID, member.asset.ID, member.confidence, models.MappingMethodAutoSymbol); err != nil {
				report.Errors = append(report.Errors, err.Error())
				continue
			}
			report.MappingsUpserted++
		}
	}

	log.Printf("Reconciliation finished: %d groups, %d unified assets, %d mappings, %d errors",
		report.Groups, report.UnifiedAssets, report.MappingsUpserted, len(report.Errors))
	return report, nil
}

// CreateManualMapping maps one source asset onto a unified asset by
// hand, bypassing the heuristic. Manual mappings always carry confidence
// 100 and survive later automatic runs.
func (s *ReconciliationService) CreateManualMapping(ctx context.Context, assetID int64, normalizedSymbol string) (*models.AssetMapping, error) {
	symbol := strings.ToUpper(strings.TrimSpace(normalizedSymbol))
	if symbol == "" {
		return nil, utils.NewValidationError("normalized symbol must not be empty")
	}

	if _, err := s.assets.FindByID(ctx, assetID); err != nil {
		return nil, fmt.Errorf("failed to resolve asset %d: %w", assetID, err)
	}

	unified, err := s.mappings.GetOrCreateUnifiedAsset(ctx, symbol, s.displayName(symbol))
	if err != nil {
		return nil, err
	}
	if err := s.mappings.UpsertMapping(ctx, unified.ID, assetID, ConfidenceExact, models.MappingMethodManual); err != nil {
		return nil, err
	}

	return s.mappings.FindMappingByAssetID(ctx, assetID)
}

// ListMappings returns every mapping with its platform asset context.
func (s *ReconciliationService) ListMappings(ctx context.Context) ([]models.AssetMapping, error) {
	return s.mappings.ListMappings(ctx)
}

func (s *ReconciliationService) displayName(symbol string) string {
	return s.caser.String(strings.ToLower(symbol))
}

// Multiplier prefixes some sources prepend to low-priced instruments
// (e.g. 1000PEPE, 1MBONK). Ordered longest first.
var multiplierPrefixes = []string{"1000000", "1M", "10000", "1000"}

// Quote and derivative suffixes stripped during normalization. Ordered
// longest first so USDT wins over USD.
var (
	derivativeSuffixes = []string{"-PERP", "_PERP", "PERP", "-SWAP", "_SWAP", "SWAP"}
	quoteSuffixes      = []string{"USDT", "USDC", "BUSD", "USD", "EUR"}
)

// NormalizeSymbol reduces a source symbol to its cross-source base form
// and scores how direct the reduction was: 100 when only a quote suffix
// had to go, 95 when a multiplier prefix was stripped, 90 for anything
// that needed separator or derivative surgery.
func NormalizeSymbol(source, symbol string) (string, int) {
	trimmed := strings.TrimSpace(symbol)

	// Hyperliquid prefixes thousand-multiplied instruments with a
	// lowercase k (kPEPE); handled before uppercasing loses the marker.
	kPrefixed := false
	if strings.ToLower(source) == "hyperliquid" && len(trimmed) > 1 &&
		strings.HasPrefix(trimmed, "k") && trimmed[1:] == strings.ToUpper(trimmed[1:]) {
		trimmed = trimmed[1:]
		kPrefixed = true
	}

	original := strings.ToUpper(trimmed)
	if original == "" {
		return "", 0
	}

	normalized := original
	heuristic := false

	// Settlement part (BTC/USDT:USDT) and pair separator
	if i := strings.IndexByte(normalized, ':'); i >= 0 {
		normalized = normalized[:i]
		heuristic = true
	}
	if i := strings.IndexByte(normalized, '/'); i >= 0 {
		normalized = normalized[:i]
		heuristic = true
	}

	for _, suffix := range derivativeSuffixes {
		if strings.HasSuffix(normalized, suffix) && len(normalized) > len(suffix) {
			normalized = strings.TrimSuffix(normalized, suffix)
			heuristic = true
			break
		}
	}

	normalized = strings.TrimRight(normalized, "-_")

	for _, quote := range quoteSuffixes {
		if strings.HasSuffix(normalized, quote) && len(normalized) > len(quote) {
			normalized = strings.TrimSuffix(normalized, quote)
			break
		}
	}
	normalized = strings.TrimRight(normalized, "-_")

	prefixStripped := false
	for _, prefix := range multiplierPrefixes {
		if strings.HasPrefix(normalized, prefix) && len(normalized) > len(prefix) {
			normalized = strings.TrimPrefix(normalized, prefix)
			prefixStripped = true
			break
		}
	}

	switch {
	case heuristic:
		return normalized, ConfidenceHeuristic
	case prefixStripped || kPrefixed:
		return normalized, ConfidencePrefix
	default:
		return normalized, ConfidenceExact
	}
}
