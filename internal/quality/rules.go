package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/canon"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

// DatasetRules holds the per-dataset expectations the rule battery checks.
type DatasetRules struct {
	// MinEntities is the expected minimum number of entities per day.
	MinEntities int `yaml:"min_entities" mapstructure:"min_entities"`
	// MinValue and MaxValue bound the historically plausible range.
	MinValue float64 `yaml:"min_value" mapstructure:"min_value"`
	MaxValue float64 `yaml:"max_value" mapstructure:"max_value"`
}

// Rule is one independent data-quality check over canonical data for a
// single dataset-day.
type Rule interface {
	ID() string
	Evaluate(ctx context.Context, e *Engine, dataset string, rules DatasetRules, day time.Time) model.DQRuleResult
}

// Engine runs the rule battery. Every rule is evaluated for every configured
// dataset and day; a single ERROR never aborts the remaining rules.
type Engine struct {
	store    store.Store
	canon    *canon.Canonicalizer
	datasets map[string]DatasetRules
	rules    []Rule
}

// NewEngine creates a DQ engine with the standard rule battery.
func NewEngine(st store.Store, c *canon.Canonicalizer, datasets map[string]DatasetRules) *Engine {
	return &Engine{
		store:    st,
		canon:    c,
		datasets: datasets,
		rules:    []Rule{entityCoverageRule{}, valueRangeRule{}, dayGapRule{}},
	}
}

// RunRules evaluates the full battery for each day in [start, end], persists
// the results, and returns them.
func (e *Engine) RunRules(ctx context.Context, start, end time.Time) ([]model.DQRuleResult, error) {
	start = model.Day(start)
	end = model.Day(end)
	if end.Before(start) {
		return nil, eris.New("quality: end date before start date")
	}

	now := time.Now().UTC()
	var results []model.DQRuleResult
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for dataset, rules := range e.datasets {
			for _, rule := range e.rules {
				res := rule.Evaluate(ctx, e, dataset, rules, day)
				res.CreatedAt = now
				results = append(results, res)
			}
		}
	}

	if err := e.store.InsertDQResults(ctx, results); err != nil {
		return nil, eris.Wrap(err, "quality: persist dq results")
	}
	return results, nil
}

func ruleID(name, dataset string) string {
	return name + ":" + dataset
}

// errorResult converts an evaluation failure into an ERROR outcome so the
// rest of the battery keeps running.
func errorResult(name, dataset string, day time.Time, err error) model.DQRuleResult {
	return model.DQRuleResult{
		RuleID:     ruleID(name, dataset),
		TargetDate: day,
		Status:     model.DQError,
		Message:    "evaluation failed: " + err.Error(),
	}
}

// entityCoverageRule checks that the expected number of entities is present.
type entityCoverageRule struct{}

func (entityCoverageRule) ID() string { return "entity-coverage" }

func (r entityCoverageRule) Evaluate(ctx context.Context, e *Engine, dataset string, rules DatasetRules, day time.Time) model.DQRuleResult {
	canonRows, err := e.canon.ResolveDatasetDay(ctx, dataset, day)
	if err != nil {
		return errorResult(r.ID(), dataset, day, err)
	}

	res := model.DQRuleResult{RuleID: ruleID(r.ID(), dataset), TargetDate: day}
	switch {
	case len(canonRows) == 0:
		res.Status = model.DQError
		res.Message = fmt.Sprintf("no canonical observations for %s", dataset)
	case rules.MinEntities > 0 && len(canonRows) < rules.MinEntities:
		res.Status = model.DQWarn
		res.Message = fmt.Sprintf("%d entities present, expected at least %d", len(canonRows), rules.MinEntities)
	default:
		res.Status = model.DQPass
		res.Message = fmt.Sprintf("%d entities present", len(canonRows))
	}
	return res
}

// valueRangeRule checks canonical values against the plausible band.
type valueRangeRule struct{}

func (valueRangeRule) ID() string { return "value-range" }

func (r valueRangeRule) Evaluate(ctx context.Context, e *Engine, dataset string, rules DatasetRules, day time.Time) model.DQRuleResult {
	canonRows, err := e.canon.ResolveDatasetDay(ctx, dataset, day)
	if err != nil {
		return errorResult(r.ID(), dataset, day, err)
	}

	res := model.DQRuleResult{RuleID: ruleID(r.ID(), dataset), TargetDate: day}
	if rules.MaxValue <= rules.MinValue {
		res.Status = model.DQPass
		res.Message = "no plausible range configured"
		return res
	}

	var outliers []string
	for _, c := range canonRows {
		if c.Value < rules.MinValue || c.Value > rules.MaxValue {
			outliers = append(outliers, fmt.Sprintf("%s=%.4f", c.Entity, c.Value))
		}
	}
	if len(outliers) > 0 {
		res.Status = model.DQError
		res.Message = fmt.Sprintf("%d value(s) outside [%.2f, %.2f]: %v", len(outliers), rules.MinValue, rules.MaxValue, outliers)
		return res
	}
	res.Status = model.DQPass
	res.Message = fmt.Sprintf("%d value(s) within [%.2f, %.2f]", len(canonRows), rules.MinValue, rules.MaxValue)
	return res
}

// dayGapRule flags entities that reported the prior day but are missing on
// the target day.
type dayGapRule struct{}

func (dayGapRule) ID() string { return "day-gap" }

func (r dayGapRule) Evaluate(ctx context.Context, e *Engine, dataset string, rules DatasetRules, day time.Time) model.DQRuleResult {
	today, err := e.canon.ResolveDatasetDay(ctx, dataset, day)
	if err != nil {
		return errorResult(r.ID(), dataset, day, err)
	}
	prior, err := e.canon.ResolveDatasetDay(ctx, dataset, day.AddDate(0, 0, -1))
	if err != nil {
		return errorResult(r.ID(), dataset, day, err)
	}

	res := model.DQRuleResult{RuleID: ruleID(r.ID(), dataset), TargetDate: day}
	if len(prior) == 0 {
		res.Status = model.DQPass
		res.Message = "no prior-day data to compare"
		return res
	}

	present := make(map[string]bool, len(today))
	for _, c := range today {
		present[c.Entity.String()] = true
	}
	var missing []string
	for _, c := range prior {
		if !present[c.Entity.String()] {
			missing = append(missing, c.Entity.String())
		}
	}
	if len(missing) > 0 {
		res.Status = model.DQWarn
		res.Message = fmt.Sprintf("%d entity(ies) present yesterday but missing today: %v", len(missing), missing)
		return res
	}
	res.Status = model.DQPass
	res.Message = "no unexplained gaps versus prior day"
	return res
}
