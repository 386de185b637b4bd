package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/virtual-pointer/pkg/logger"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single YAML flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses YAML flow content: an optional config document, "---", then
// the list of steps.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	parts := splitYAMLDocuments(string(data))

	flow := &Flow{
		SourcePath: sourcePath,
	}

	if len(parts) == 0 {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    1,
			Message: "empty flow file",
		}
	}

	if len(parts) == 1 {
		if err := parseSteps(parts[0], flow); err != nil {
			return nil, err
		}
	} else {
		if err := parseConfig(parts[0], flow); err != nil {
			return nil, err
		}
		if err := parseSteps(parts[1], flow); err != nil {
			return nil, err
		}
	}

	return flow, nil
}

// splitYAMLDocuments splits on "---" lines that are not inside a block scalar.
func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inMultiline := false
	multilineIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inMultiline {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inMultiline = true
				if i+1 < len(lines) {
					next := lines[i+1]
					multilineIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < multilineIndent {
				inMultiline = false
			}
		}

		if !inMultiline && trimmed == "---" && strings.TrimLeft(line, " \t") == "---" {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if current.Len() > 0 {
		s := strings.TrimSpace(current.String())
		if s != "" {
			parts = append(parts, current.String())
		}
	}

	return parts
}

func parseConfig(content string, flow *Flow) error {
	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid config: %v", err),
		}
	}

	// Parse lifecycle hooks (onFlowStart, onFlowComplete)
	var rawConfig struct {
		OnFlowStart    []yaml.Node `yaml:"onFlowStart"`
		OnFlowComplete []yaml.Node `yaml:"onFlowComplete"`
	}
	if err := yaml.Unmarshal([]byte(content), &rawConfig); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid config: %v", err),
		}
	}

	for _, node := range rawConfig.OnFlowStart {
		step, err := parseStep(&node, flow.SourcePath)
		if err != nil {
			return err
		}
		config.OnFlowStart = append(config.OnFlowStart, step)
	}

	for _, node := range rawConfig.OnFlowComplete {
		step, err := parseStep(&node, flow.SourcePath)
		if err != nil {
			return err
		}
		config.OnFlowComplete = append(config.OnFlowComplete, step)
	}

	flow.Config = config
	return nil
}

func parseSteps(content string, flow *Flow) error {
	var rawSteps []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &rawSteps); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid steps: %v", err),
		}
	}

	for _, node := range rawSteps {
		step, err := parseStep(&node, flow.SourcePath)
		if err != nil {
			return err
		}
		flow.Steps = append(flow.Steps, step)
	}

	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Handle scalar nodes like "- tapStart" (no colon, no params)
	if node.Kind == yaml.ScalarNode {
		stepType := node.Value
		if !isStepType(stepType) {
			return nil, &ParseError{
				Path:    sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown step type: %s", stepType),
			}
		}
		emptyNode := &yaml.Node{Kind: yaml.MappingNode}
		return decodeStep(StepType(stepType), emptyNode, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping or command name",
		}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		msg := "unknown step type"
		if len(node.Content) > 0 {
			msg += ": " + node.Content[0].Value
		}
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: msg,
		}
	}

	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepTapStart, StepTapEnd, StepClick, StepTap, StepPress, StepDoubleTap,
		StepMove, StepDrag, StepFlick, StepSetPosition,
		StepAssertEvents, StepAssertTrue,
		StepRepeat, StepRunScript, StepEvalScript, StepDefineVariables, StepWait:
		return true
	}
	return false
}

// isNull reports a value node written as "- tap:" with nothing after it.
func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && (node.Tag == "!!null" || node.Value == "")
}

//nolint:gocyclo
func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	switch stepType {
	case StepTapStart, StepTapEnd, StepClick, StepTap:
		var s PointerStep
		if valueNode.Kind == yaml.ScalarNode {
			if !isNull(valueNode) {
				s.Selector.Query = valueNode.Value
			}
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepPress:
		var s PressStep
		if valueNode.Kind == yaml.ScalarNode {
			if !isNull(valueNode) {
				s.Selector.Query = valueNode.Value
			}
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepDoubleTap:
		var s DoubleTapStep
		if valueNode.Kind == yaml.ScalarNode {
			if !isNull(valueNode) {
				s.Selector.Query = valueNode.Value
			}
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepMove, StepDrag, StepFlick:
		var s MoveStep
		if valueNode.Kind == yaml.ScalarNode {
			if !isNull(valueNode) {
				s.Selector.Query = valueNode.Value
			}
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepSetPosition:
		var s SetPositionStep
		if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertEvents:
		var s AssertEventsStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Name = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepAssertTrue:
		var s AssertTrueStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Script = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepRepeat:
		return parseRepeatStep(valueNode, sourcePath)

	case StepRunScript:
		var s RunScriptStep
		if valueNode.Kind == yaml.ScalarNode {
			s.File = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = StepRunScript
		return &s, nil

	case StepEvalScript:
		var s EvalScriptStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Script = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = StepEvalScript
		return &s, nil

	case StepDefineVariables:
		var s DefineVariablesStep
		s.Env = make(map[string]string)
		if valueNode.Kind == yaml.MappingNode {
			for i := 0; i < len(valueNode.Content)-1; i += 2 {
				s.Env[valueNode.Content[i].Value] = valueNode.Content[i+1].Value
			}
		}
		s.StepType = stepType
		return &s, nil

	case StepWait:
		var s WaitStep
		if valueNode.Kind == yaml.ScalarNode {
			if err := valueNode.Decode(&s.DurationMs); err != nil {
				return nil, wrapParseError(sourcePath, valueNode.Line, err)
			}
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	default:
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    valueNode.Line,
			Message: fmt.Sprintf("unknown step type: %s", stepType),
		}
	}
}

// parseRepeatStep handles repeat with nested commands.
func parseRepeatStep(valueNode *yaml.Node, sourcePath string) (Step, error) {
	var raw struct {
		Times    string      `yaml:"times"` // String for variable support
		Commands []yaml.Node `yaml:"commands"`
		Optional bool        `yaml:"optional"`
		Label    string      `yaml:"label"`
	}

	if err := valueNode.Decode(&raw); err != nil {
		return nil, wrapParseError(sourcePath, valueNode.Line, err)
	}

	s := &RepeatStep{
		BaseStep: BaseStep{
			StepType:  StepRepeat,
			Optional:  raw.Optional,
			StepLabel: raw.Label,
		},
		Times: raw.Times,
	}

	for _, cmdNode := range raw.Commands {
		step, err := parseStep(&cmdNode, sourcePath)
		if err != nil {
			return nil, err
		}
		s.Steps = append(s.Steps, step)
	}

	return s, nil
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// ParseDirectory parses all YAML flow files in a directory. Files that fail
// to parse are skipped with a warning.
func ParseDirectory(dir string, includeTags, excludeTags []string) ([]*Flow, error) {
	var flows []*Flow

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if isSceneFile(path) {
			return nil
		}

		flow, parseErr := ParseFile(path)
		if parseErr != nil {
			logger.Warn("skipping %s: %v", path, parseErr)
			return nil
		}

		if ShouldIncludeFlow(flow, includeTags, excludeTags) {
			flows = append(flows, flow)
		}
		return nil
	})

	return flows, err
}

// isSceneFile reports files named like "login.scene.yaml".
func isSceneFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(base, ".scene.yaml") || strings.HasSuffix(base, ".scene.yml")
}

// ShouldIncludeFlow checks if a flow matches tag filters.
func ShouldIncludeFlow(flow *Flow, includeTags, excludeTags []string) bool {
	if len(includeTags) > 0 {
		hasTag := false
		for _, tag := range flow.Config.Tags {
			for _, include := range includeTags {
				if tag == include {
					hasTag = true
					break
				}
			}
		}
		if !hasTag {
			return false
		}
	}

	for _, tag := range flow.Config.Tags {
		for _, exclude := range excludeTags {
			if tag == exclude {
				return false
			}
		}
	}

	return true
}
