package types

// Strategy identifies the parsing technique that produced a result
type Strategy string

const (
	// StrategySyntaxTree is the advanced, syntax-aware strategy
	StrategySyntaxTree Strategy = "syntax_tree"
	// StrategyRegex locates declarations with per-language pattern families
	StrategyRegex Strategy = "regex"
	// StrategyLines performs no extraction and chunks on fixed windows
	StrategyLines Strategy = "lines"
	// StrategyFallback marks the minimal result produced when every strategy failed
	StrategyFallback Strategy = "fallback"
)

// String returns the wire name of the strategy
func (s Strategy) String() string {
	return string(s)
}

// Validate checks if the strategy is one of the known values
func (s Strategy) Validate() error {
	switch s {
	case StrategySyntaxTree, StrategyRegex, StrategyLines, StrategyFallback:
		return nil
	default:
		return ErrInvalidStrategy
	}
}

// StrategyNames converts a strategy list to its wire names
func StrategyNames(strategies []Strategy) []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}
	return names
}
