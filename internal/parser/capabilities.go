package parser

import (
	"fmt"

	"github.com/dshills/codeingest/pkg/types"
)

// ProbeFunc checks whether the syntax-tree backend is usable
type ProbeFunc func() error

// richSupport lists languages eligible for the syntax-tree strategy
var richSupport = map[string]bool{
	"python":     true,
	"javascript": true,
	"typescript": true,
	"java":       true,
}

// moderateSupport lists languages with a regex pattern family or a
// recognised import syntax
var moderateSupport = map[string]bool{
	"python":     true,
	"javascript": true,
	"typescript": true,
	"java":       true,
	"go":         true,
	"rust":       true,
	"csharp":     true,
	"php":        true,
}

// Capabilities records which parsing strategies are usable in this process.
// It is immutable after construction and safe for concurrent use.
type Capabilities struct {
	advanced bool
	reason   string
}

// NewCapabilities runs probe once and records the outcome. A failing or
// panicking probe marks the syntax-tree backend unavailable.
func NewCapabilities(probe ProbeFunc) *Capabilities {
	c := &Capabilities{}
	if probe == nil {
		c.reason = "no probe configured"
		return c
	}

	err := runProbe(probe)
	if err != nil {
		c.reason = err.Error()
		return c
	}
	c.advanced = true
	return c
}

// DetectCapabilities probes the tree-sitter backend compiled into this binary
func DetectCapabilities() *Capabilities {
	return NewCapabilities(probeSyntaxTree)
}

// Disabled returns capabilities with the syntax-tree backend switched off
func Disabled() *Capabilities {
	return &Capabilities{reason: "disabled by configuration"}
}

func runProbe(probe ProbeFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return probe()
}

// AdvancedAvailable reports whether the syntax-tree backend passed its probe
func (c *Capabilities) AdvancedAvailable() bool {
	return c.advanced
}

// Reason explains why the syntax-tree backend is unavailable. Empty when available.
func (c *Capabilities) Reason() string {
	return c.reason
}

// AvailableStrategies returns the usable strategies in preference order.
// Regex and lines are always present.
func (c *Capabilities) AvailableStrategies() []types.Strategy {
	strategies := make([]types.Strategy, 0, 3)
	if c.advanced {
		strategies = append(strategies, types.StrategySyntaxTree)
	}
	return append(strategies, types.StrategyRegex, types.StrategyLines)
}

// RecommendedStrategy picks the best strategy for a language
func (c *Capabilities) RecommendedStrategy(language string) types.Strategy {
	switch {
	case c.advanced && richSupport[language]:
		return types.StrategySyntaxTree
	case moderateSupport[language]:
		return types.StrategyRegex
	default:
		return types.StrategyLines
	}
}

// AttemptOrder returns the recommended strategy followed by every other
// available strategy, each exactly once
func (c *Capabilities) AttemptOrder(language string) []types.Strategy {
	recommended := c.RecommendedStrategy(language)
	order := []types.Strategy{recommended}
	for _, s := range c.AvailableStrategies() {
		if s != recommended {
			order = append(order, s)
		}
	}
	return order
}
