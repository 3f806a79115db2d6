package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Thox33/sync-tool/internal/engine"
	"github.com/Thox33/sync-tool/internal/provider/memory"
)

// Scenario defines one sync run and what it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ConfigFile is the file name the configuration is parsed as. Its
	// extension selects the format. Defaults to "sync.cue".
	ConfigFile string `yaml:"config_file,omitempty"`

	// Config is the complete configuration text.
	Config string `yaml:"config,omitempty"`

	// ConfigPath names a configuration file instead, relative to the
	// scenario file. It also sets ConfigFile when that is empty.
	ConfigPath string `yaml:"config_path,omitempty"`

	// Sync and Rule select the rule to run.
	Sync string `yaml:"sync"`
	Rule string `yaml:"rule"`

	DryRun  bool `yaml:"dry_run,omitempty"`
	Workers int  `yaml:"workers,omitempty"`

	// StepFactor overrides the per-item step budget when positive.
	StepFactor int `yaml:"step_factor,omitempty"`

	// RunID is the run id reported by the run. Defaults to "run-1".
	RunID string `yaml:"run_id,omitempty"`

	// Seed holds the initial records per provider name and item type.
	Seed map[string]map[string][]map[string]any `yaml:"seed,omitempty"`

	// Failures are injected into provider calls.
	Failures []Failure `yaml:"failures,omitempty"`

	// Assertions validate the run outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Failure makes a provider operation fail. An empty ID matches every call
// of the operation.
type Failure struct {
	Provider string `yaml:"provider"`
	Op       string `yaml:"op"`
	ID       string `yaml:"id,omitempty"`
	Error    string `yaml:"error"`
}

func (f Failure) matches(providerName string, op memory.Op, id string) bool {
	return f.Provider == providerName && f.Op == string(op) && (f.ID == "" || f.ID == id)
}

// Assertion validates the run outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "error_code": the run ended with the runtime error Code ("" for none)
	// - "item_status": item Item ended with Status
	// - "report": report counters in Expect match
	// - "call_count": provider Provider received Op exactly Count times
	// - "call_order": the calls in Calls appear in this order
	// - "final_state": record ID of ItemType in Provider holds Expect
	Type string `yaml:"type"`

	Code string `yaml:"code,omitempty"`

	Item   string `yaml:"item,omitempty"`
	Status string `yaml:"status,omitempty"`

	Provider string `yaml:"provider,omitempty"`
	Op       string `yaml:"op,omitempty"`
	Count    int    `yaml:"count,omitempty"`

	// Calls are written "<provider> <op>", optionally followed by an id.
	Calls []string `yaml:"calls,omitempty"`

	ItemType string `yaml:"item_type,omitempty"`
	ID       string `yaml:"id,omitempty"`

	// Expect holds dotted record paths for final_state and counter names
	// for report. Values are compared by their JSON encoding.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertErrorCode  = "error_code"
	AssertItemStatus = "item_status"
	AssertReport     = "report"
	AssertCallCount  = "call_count"
	AssertCallOrder  = "call_order"
	AssertFinalState = "final_state"
)

var knownOps = []memory.Op{
	memory.OpInit, memory.OpTeardown, memory.OpGet,
	memory.OpGetByID, memory.OpCreate, memory.OpPatch,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.ConfigPath != "" {
		if scenario.Config != "" {
			return nil, fmt.Errorf("invalid scenario: config and config_path are mutually exclusive")
		}
		configPath := scenario.ConfigPath
		if !filepath.IsAbs(configPath) {
			configPath = filepath.Join(filepath.Dir(path), configPath)
		}
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario config: %w", err)
		}
		scenario.Config = string(content)
		if scenario.ConfigFile == "" {
			scenario.ConfigFile = filepath.Base(configPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Config == "" {
		return fmt.Errorf("config or config_path is required")
	}
	if s.Sync == "" || s.Rule == "" {
		return fmt.Errorf("sync and rule are required")
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if s.StepFactor < 0 {
		return fmt.Errorf("step_factor must not be negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, f := range s.Failures {
		if f.Provider == "" {
			return fmt.Errorf("failures[%d]: provider is required", i)
		}
		if !validOp(f.Op) {
			return fmt.Errorf("failures[%d]: unknown op %q", i, f.Op)
		}
		if f.Error == "" {
			return fmt.Errorf("failures[%d]: error is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validOp(op string) bool {
	for _, known := range knownOps {
		if string(known) == op {
			return true
		}
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertErrorCode:
		if a.Code != "" && !engine.RuntimeErrorCode(a.Code).Valid() {
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Code)
		}
	case AssertItemStatus:
		if a.Item == "" {
			return fmt.Errorf("assertions[%d]: item is required for item_status", index)
		}
		var st engine.Status
		if err := st.UnmarshalText([]byte(a.Status)); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertReport:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for report", index)
		}
		for key := range a.Expect {
			if _, ok := reportCounters[key]; !ok {
				return fmt.Errorf("assertions[%d]: unknown report counter %q", index, key)
			}
		}
	case AssertCallCount:
		if a.Provider == "" {
			return fmt.Errorf("assertions[%d]: provider is required for call_count", index)
		}
		if !validOp(a.Op) {
			return fmt.Errorf("assertions[%d]: unknown op %q", index, a.Op)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
	case AssertCallOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for call_order", index)
		}
	case AssertFinalState:
		if a.Provider == "" || a.ItemType == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: provider, item_type and id are required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
