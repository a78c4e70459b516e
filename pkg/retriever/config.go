package retriever

import "github.com/boxabirds/docqa/internal/util"

// Config holds the retrieval fan-out and budget knobs.
type Config struct {
	TopKEntities         int // vector-NN fan-out for the entity channel
	TopKTextUnits        int // final cap on returned chunks
	TopKRelationships    int
	TopKCommunityReports int
	TextUnitTokenBudget  int // cumulative n_tokens ceiling across selected chunks
	DirectTextUnitK      int // direct chunk recall channel size
	PromptCharBudget     int // character ceiling for the formatted prompt block
}

// DefaultConfig returns the standard retrieval parameters.
func DefaultConfig() Config {
	return Config{
		TopKEntities:         10,
		TopKTextUnits:        10,
		TopKRelationships:    20,
		TopKCommunityReports: 3,
		TextUnitTokenBudget:  4000,
		DirectTextUnitK:      10,
		PromptCharBudget:     24000,
	}
}

// ConfigFromEnv reads the retrieval knobs from the environment, falling
// back to the defaults for anything unset.
func ConfigFromEnv() Config {
	defaults := DefaultConfig()
	return Config{
		TopKEntities:         int(util.GetEnvNumeric("TOP_K_ENTITIES", defaults.TopKEntities)),
		TopKTextUnits:        int(util.GetEnvNumeric("TOP_K_TEXT_UNITS", defaults.TopKTextUnits)),
		TopKRelationships:    int(util.GetEnvNumeric("TOP_K_RELATIONSHIPS", defaults.TopKRelationships)),
		TopKCommunityReports: int(util.GetEnvNumeric("TOP_K_REPORTS", defaults.TopKCommunityReports)),
		TextUnitTokenBudget:  int(util.GetEnvNumeric("TEXT_UNIT_TOKEN_BUDGET", defaults.TextUnitTokenBudget)),
		DirectTextUnitK:      int(util.GetEnvNumeric("DIRECT_TEXT_UNIT_K", defaults.DirectTextUnitK)),
		PromptCharBudget:     int(util.GetEnvNumeric("PROMPT_CHAR_BUDGET", defaults.PromptCharBudget)),
	}
}
