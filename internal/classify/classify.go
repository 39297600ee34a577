// Package classify implements Stage 2: scoring an Extraction Record against
// a closed set of CRA tax-guide categories, either via a configured LLM
// provider or a deterministic keyword fallback, following the teacher's
// two-tier "try the provider, degrade to a local heuristic" pattern in
// internal/perception/semantic_classifier.go (vector match with a
// local-corpus fallback store).
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"craskill/internal/extract"
	"craskill/internal/logging"
	"craskill/internal/provider"
)

// Category is one entry of the closed category set a Classification Record
// may report as primary or secondary.
type Category string

// The closed set of CRA tax-guide domains this classifier recognizes.
const (
	EmploymentIncome    Category = "employment_income"
	SelfEmploymentIncome Category = "self_employment_income"
	InvestmentIncome    Category = "investment_income"
	Deductions          Category = "deductions"
	TaxCredits          Category = "tax_credits"
	RetirementSavings   Category = "retirement_savings"
	BenefitsAndCredits  Category = "benefits_and_credits"
	CapitalGains        Category = "capital_gains"
	GSTHST              Category = "gst_hst"
	ProvincialTaxes     Category = "provincial_taxes"
	FilingAndDeadlines  Category = "filing_and_deadlines"
	OtherGeneral        Category = "other_general"
)

// allCategories is iterated by the keyword fallback in source-set order.
var allCategories = []Category{
	EmploymentIncome, SelfEmploymentIncome, InvestmentIncome, Deductions,
	TaxCredits, RetirementSavings, BenefitsAndCredits, CapitalGains,
	GSTHST, ProvincialTaxes, FilingAndDeadlines, OtherGeneral,
}

// keywordTable maps each category to the terms the fallback path scores
// against. Entries are lowercase; matching is case-insensitive substring.
var keywordTable = map[Category][]string{
	EmploymentIncome:     {"t4", "employment income", "salary", "wages", "employer"},
	SelfEmploymentIncome: {"self-employment", "business income", "t2125", "sole proprietor"},
	InvestmentIncome:     {"dividend", "interest income", "t5", "investment income"},
	Deductions:           {"deduction", "eligible expense", "rrsp deduction", "union dues"},
	TaxCredits:           {"tax credit", "non-refundable", "schedule 1"},
	RetirementSavings:    {"rrsp", "rrif", "retirement savings", "pension adjustment"},
	BenefitsAndCredits:   {"canada child benefit", "gst/hst credit", "benefit payment"},
	CapitalGains:         {"capital gain", "capital loss", "schedule 3", "adjusted cost base"},
	GSTHST:               {"gst", "hst", "input tax credit", "gst/hst return"},
	ProvincialTaxes:      {"provincial tax", "form 428", "ontario tax", "quebec"},
	FilingAndDeadlines:   {"filing deadline", "due date", "april 30", "notice of assessment"},
	OtherGeneral:         {},
}

// SecondaryCategory is a non-primary match with its own confidence.
type SecondaryCategory struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// Quality bundles the five fixed sub-scores the downstream consumer keys
// off of by name. Field names are authoritative per spec.md's resolution of
// the session-handout naming ambiguity (structure_quality/content_depth are
// not used).
type Quality struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Relevance    float64 `json:"relevance"`
	Clarity      float64 `json:"clarity"`
	Practicality float64 `json:"practicality"`
}

// Record is the Stage 2 output.
type Record struct {
	PrimaryCategory   Category            `json:"primary_category"`
	Confidence        float64             `json:"confidence"`
	SecondaryCategories []SecondaryCategory `json:"secondary_categories"`
	Quality           Quality             `json:"quality"`
	MatchedKeywords   []string            `json:"matched_keywords"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Classify scores ext against the closed category set using client if it is
// available, falling back to the deterministic keyword heuristic on any
// provider failure. Per spec.md §4.E, classification must never fail the
// pipeline: this function only returns an error if both paths are
// impossible, which the keyword fallback guarantees cannot happen.
func Classify(ctx context.Context, ext *extract.Record, client provider.Client) (*Record, error) {
	log := logging.Get(logging.CategoryClassify)

	if client != nil && client.Available(ctx) {
		rec, err := classifyWithProvider(ctx, ext, client)
		if err == nil {
			return rec, nil
		}
		log.Warn("provider classification failed, falling back to keywords: %v", err)
	}

	return classifyByKeywords(ext), nil
}

func classifyWithProvider(ctx context.Context, ext *extract.Record, client provider.Client) (*Record, error) {
	prompt := buildClassificationPrompt(ext)
	if len(prompt) > client.MaxChunkSize() {
		prompt = prompt[:client.MaxChunkSize()]
	}

	raw, err := client.Invoke(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("provider classification: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &rec); err != nil {
		return nil, fmt.Errorf("invalid-response: could not parse classification JSON: %w", err)
	}
	if rec.PrimaryCategory == "" {
		return nil, fmt.Errorf("invalid-response: classification JSON missing primary_category")
	}

	rec.Confidence = clamp01(rec.Confidence)
	rec.Quality.Completeness = clamp01(rec.Quality.Completeness)
	rec.Quality.Accuracy = clamp01(rec.Quality.Accuracy)
	rec.Quality.Relevance = clamp01(rec.Quality.Relevance)
	rec.Quality.Clarity = clamp01(rec.Quality.Clarity)
	rec.Quality.Practicality = clamp01(rec.Quality.Practicality)
	for i := range rec.SecondaryCategories {
		rec.SecondaryCategories[i].Confidence = clamp01(rec.SecondaryCategories[i].Confidence)
	}
	if len(rec.MatchedKeywords) == 0 {
		rec.MatchedKeywords = []string{string(rec.PrimaryCategory)}
	}
	return &rec, nil
}

func buildClassificationPrompt(ext *extract.Record) string {
	sample := ext.FullText
	const maxSample = 8000
	if len(sample) > maxSample {
		sample = sample[:maxSample]
	}
	return fmt.Sprintf(
		"Classify the following CRA tax-guide excerpt into one primary category "+
			"and return a JSON object with fields primary_category, confidence, "+
			"secondary_categories, quality (completeness, accuracy, relevance, "+
			"clarity, practicality), matched_keywords.\n\nExcerpt:\n%s", sample)
}

// extractJSONObject trims any surrounding prose a provider may add around
// the requested JSON object.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// classifyByKeywords scores every category by matched-keyword density over
// the static table and always returns a valid Record, per spec.md §4.E's
// requirement that classification never fails the pipeline.
func classifyByKeywords(ext *extract.Record) *Record {
	lower := strings.ToLower(ext.FullText)

	type scored struct {
		category Category
		score    float64
		matches  []string
	}
	var results []scored
	for _, cat := range allCategories {
		var matches []string
		for _, kw := range keywordTable[cat] {
			if strings.Contains(lower, kw) {
				matches = append(matches, kw)
			}
		}
		if len(keywordTable[cat]) == 0 {
			continue
		}
		score := float64(len(matches)) / float64(len(keywordTable[cat]))
		results = append(results, scored{category: cat, score: score, matches: matches})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	primary := OtherGeneral
	confidence := 0.3
	var keywords []string
	var secondary []SecondaryCategory
	if len(results) > 0 && results[0].score > 0 {
		primary = results[0].category
		confidence = clamp01(0.4 + results[0].score*0.5)
		keywords = results[0].matches
		for _, r := range results[1:] {
			if r.score <= 0 {
				continue
			}
			secondary = append(secondary, SecondaryCategory{
				Category:   r.category,
				Confidence: clamp01(0.3 + r.score*0.4),
			})
			if len(secondary) >= 3 {
				break
			}
		}
	}
	if len(keywords) == 0 {
		keywords = []string{"general"}
	}

	return &Record{
		PrimaryCategory:     primary,
		Confidence:          confidence,
		SecondaryCategories: secondary,
		Quality: Quality{
			Completeness: 0.5,
			Accuracy:     0.5,
			Relevance:    0.5,
			Clarity:      0.5,
			Practicality: 0.5,
		},
		MatchedKeywords: keywords,
	}
}
