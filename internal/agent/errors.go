package agent

import "errors"

// ErrNoProvider reports that no LLMProvider has been configured (missing API
// key, per §4.F's "one configured endpoint"). No code in this module returns it.
var ErrNoProvider = errors.New("agent: no language model provider configured")
