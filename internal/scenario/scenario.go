// Package scenario loads scripted simulation runs from TOML files, so a
// dialogue can be replayed with the same client messages every time.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalidScenario indicates a scenario file that parsed or validated
// badly.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario scripts one reproducible simulation run. Absent optional fields
// keep their zero values and the runner falls back to its configured
// defaults.
type Scenario struct {
	CaseID             string   `toml:"case_id"`
	FirstClientMessage string   `toml:"first_client_message"`
	ClientMessages     []string `toml:"client_messages"`
	MaxTurns           int      `toml:"max_turns"`
}

// Load reads and parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	sc, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes scenario TOML. Unknown keys and malformed values fail
// descriptively rather than being dropped.
func Parse(data string) (*Scenario, error) {
	var sc Scenario
	md, err := toml.Decode(data, &sc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%w: unknown keys: %s", ErrInvalidScenario, strings.Join(keys, ", "))
	}

	if sc.MaxTurns < 0 {
		return nil, fmt.Errorf("%w: max_turns must be non-negative, got %d", ErrInvalidScenario, sc.MaxTurns)
	}
	for i, msg := range sc.ClientMessages {
		if strings.TrimSpace(msg) == "" {
			return nil, fmt.Errorf("%w: client_messages[%d] is empty", ErrInvalidScenario, i)
		}
	}
	return &sc, nil
}
