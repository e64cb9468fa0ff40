// Package filter provides the CEL-Go based outreach filter engine.
package filter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/heron/internal/domain"
)

// Engine compiles and evaluates outreach filters: boolean CEL
// expressions over customer profile fields.
type Engine struct {
	mu              sync.RWMutex
	env             *cel.Env
	compiledFilters map[string]*CompiledFilter
	maxWorkers      int
}

// CompiledFilter holds a pre-compiled CEL program.
type CompiledFilter struct {
	Config  *domain.FilterConfig
	Program cel.Program
}

// NewEngine creates a new filter engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing the profile's derived fields.
	env, err := cel.NewEnv(
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("engagement_score", cel.DoubleType),
		cel.Variable("total_spend", cel.DoubleType),
		cel.Variable("transaction_count", cel.IntType),
		cel.Variable("avg_payment_amount", cel.DoubleType),
		cel.Variable("days_since_last", cel.IntType),
		cel.Variable("regularity", cel.DoubleType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("engagement_status", cel.StringType),
		cel.Variable("payment_status", cel.StringType),
		cel.Variable("spending_trend", cel.StringType),
		cel.Variable("historical_engagement", cel.StringType),
		cel.Variable("segment", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:             env,
		compiledFilters: make(map[string]*CompiledFilter),
		maxWorkers:      maxWorkers,
	}, nil
}

// ValidateFilter compiles and validates a filter without loading it.
func (e *Engine) ValidateFilter(cfg *domain.FilterConfig) error {
	if cfg == nil {
		return fmt.Errorf("filter config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileFilter(cfg)
	return err
}

// LoadFilter compiles and loads a filter into the engine.
func (e *Engine) LoadFilter(cfg *domain.FilterConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileFilter(cfg)
	if err != nil {
		return err
	}

	e.compiledFilters[cfg.ID] = compiled

	return nil
}

// LoadFilters compiles and loads multiple filters.
func (e *Engine) LoadFilters(configs []*domain.FilterConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadFilter(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadFilters clears all existing filters and loads new ones.
// This enables hot-reloading of filters from the database.
func (e *Engine) ReloadFilters(configs []*domain.FilterConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newFilters := make(map[string]*CompiledFilter)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileFilter(cfg)
		if err != nil {
			return err
		}
		newFilters[cfg.ID] = compiled
	}

	e.compiledFilters = newFilters

	return nil
}

// FiltersCount returns the number of loaded filters.
func (e *Engine) FiltersCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledFilters)
}

// GetLoadedFilters returns the currently loaded filter configurations.
func (e *Engine) GetLoadedFilters() []*domain.FilterConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	filters := make([]*domain.FilterConfig, 0, len(e.compiledFilters))
	for _, compiled := range e.compiledFilters {
		filters = append(filters, compiled.Config)
	}
	return filters
}

// Match evaluates one loaded filter against one profile.
func (e *Engine) Match(filterID string, p *domain.CustomerProfile) (bool, error) {
	e.mu.RLock()
	compiled, ok := e.compiledFilters[filterID]
	e.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("filter %s is not loaded", filterID)
	}

	out, _, err := compiled.Program.Eval(activation(p))
	if err != nil {
		return false, fmt.Errorf("filter %s evaluation failed: %w", filterID, err)
	}

	matched, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("filter %s did not return bool", filterID)
	}

	return bool(matched), nil
}

// MatchAll evaluates one loaded filter against a batch of profiles in
// parallel and returns the matches in the input order.
func (e *Engine) MatchAll(ctx context.Context, filterID string, profiles []*domain.CustomerProfile) ([]domain.FilterMatch, error) {
	e.mu.RLock()
	_, ok := e.compiledFilters[filterID]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("filter %s is not loaded", filterID)
	}

	matched := make([]bool, len(profiles))
	errs := make([]error, len(profiles))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, p := range profiles {
		wg.Add(1)
		go func(idx int, p *domain.CustomerProfile) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			matched[idx], errs[idx] = e.Match(filterID, p)
		}(i, p)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matches []domain.FilterMatch
	for i, p := range profiles {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if !matched[i] {
			continue
		}
		matches = append(matches, domain.FilterMatch{
			FilterID:   filterID,
			CustomerID: p.CustomerID,
			Email:      p.Email,
			Name:       p.Name,
			TotalSpend: p.TotalSpend,
			Score:      p.EngagementScore,
			Segment:    p.Segment(),
		})
	}

	return matches, nil
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledFilters = make(map[string]*CompiledFilter)
	return nil
}

func (e *Engine) compileFilter(cfg *domain.FilterConfig) (*CompiledFilter, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile filter %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for filter %s: %w", cfg.ID, err)
	}

	return &CompiledFilter{
		Config:  cfg,
		Program: program,
	}, nil
}

// activation maps a profile onto the CEL variables.
func activation(p *domain.CustomerProfile) map[string]any {
	return map[string]any{
		"customer_id":           p.CustomerID,
		"engagement_score":      p.EngagementScore,
		"total_spend":           p.TotalSpend,
		"transaction_count":     p.TransactionCount,
		"avg_payment_amount":    p.AvgPaymentAmount,
		"days_since_last":       p.DaysSinceLastPayment,
		"regularity":            p.PaymentRegularityScore,
		"risk_level":            string(p.RiskLevel),
		"engagement_status":     string(p.EngagementStatus),
		"payment_status":        string(p.PaymentStatus),
		"spending_trend":        string(p.SpendingTrend),
		"historical_engagement": string(p.HistoricalEngagement),
		"segment":               p.Segment(),
	}
}
