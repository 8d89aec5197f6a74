package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and the cross references between
// populations. Every failure is a *ConfigError.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			errs := make([]error, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				errs = append(errs, &ConfigError{
					Field:  fe.Namespace(),
					Reason: fmt.Sprintf("failed %q constraint %s", fe.Tag(), fe.Param()),
				})
			}
			return errors.Join(errs...)
		}
		return &ConfigError{Reason: err.Error()}
	}

	seen := make(map[string]struct{}, len(cfg.Populations))
	for _, pop := range cfg.Populations {
		if _, dup := seen[pop.Name]; dup {
			return Errorf("populations", "duplicate population %q", pop.Name)
		}
		seen[pop.Name] = struct{}{}
	}
	if cfg.ResultPopulation != "" {
		if _, ok := seen[cfg.ResultPopulation]; !ok {
			return Errorf("resultPopulation", "unknown population %q", cfg.ResultPopulation)
		}
	}
	for token := range cfg.Catalog.Weights {
		if token == "" {
			return Errorf("catalog.weights", "empty token")
		}
	}

	for _, pop := range cfg.Populations {
		for i := range pop.Phases {
			field := fmt.Sprintf("populations.%s.phases[%d]", pop.Name, i)
			if err := validatePhase(field, &pop.Phases[i], seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func validatePhase(field string, p *Phase, populations map[string]struct{}) error {
	if err := knownKeys(field+".mutation.componentMutationWeights", p.Mutation.ComponentMutationWeights, componentOps); err != nil {
		return err
	}
	if err := knownKeys(field+".mutation.overallMutationWeights", p.Mutation.OverallMutationWeights, overallOps); err != nil {
		return err
	}
	if err := knownKeys(field+".hybridization.hybridizationTypeWeights", p.Hybridization.HybridizationTypeWeights, hybridKinds); err != nil {
		return err
	}

	if p.Algorithm.CrossPopulationHybrids > 0 {
		weights := p.Hybridization.CrossPopulationHybridWeights
		if len(weights) == 0 {
			return Errorf(field+".hybridization.crossPopulationHybridWeights", "required when crossPopulationHybrids > 0")
		}
		total := 0.0
		for name, w := range weights {
			if _, ok := populations[name]; !ok {
				return Errorf(field+".hybridization.crossPopulationHybridWeights", "unknown population %q", name)
			}
			total += w
		}
		if total <= 0 {
			return Errorf(field+".hybridization.crossPopulationHybridWeights", "total weight must be > 0")
		}
	}
	if p.Promotions != nil {
		for _, name := range p.Promotions.PromotedPopulations {
			if _, ok := populations[name]; !ok {
				return Errorf(field+".promotions.promotedPopulations", "unknown population %q", name)
			}
		}
	}
	return nil
}

func knownKeys(field string, weights map[string]float64, allowed []string) error {
	for k := range weights {
		if !slices.Contains(allowed, k) {
			return Errorf(field, "unknown operator %q", k)
		}
	}
	return nil
}
