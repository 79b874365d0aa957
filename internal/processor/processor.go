// Package processor provides a modular framework for processing captured
// command output with configurable processor chains.
package processor

import (
	"fmt"
	"strings"
)

const (
	ProcessorTypeTrim      string = "trim"
	ProcessorTypeDropEmpty string = "drop_empty"
	ProcessorTypeTail      string = "tail"
)

// DefaultTailLines is how many trailing lines the default tail keeps.
const DefaultTailLines = 20

// Processor defines the interface for processing output lines.
type Processor interface {
	// Process applies the processor's logic to the input lines.
	Process([]string) ([]string, error)
	Name() string
}

// ProcessorChain manages a collection of processors and applies them in sequence.
type ProcessorChain struct {
	processors map[string]Processor
}

func NewProcessorChain() *ProcessorChain {
	pc := &ProcessorChain{
		processors: make(map[string]Processor),
	}
	pc.registerDefaults()
	return pc
}

func (pc *ProcessorChain) registerDefaults() {
	pc.Register(&TrimProcessor{})
	pc.Register(&DropEmptyProcessor{})
	pc.Register(&TailProcessor{N: DefaultTailLines})
}

// Register adds a processor to the chain, replacing one with the same name.
func (pc *ProcessorChain) Register(p Processor) {
	pc.processors[p.Name()] = p
}

// Process applies the named processors to lines in the given order.
func (pc *ProcessorChain) Process(lines []string, processorNames ...string) ([]string, error) {
	for _, name := range processorNames {
		if _, exists := pc.processors[name]; !exists {
			return nil, fmt.Errorf("processor %q not registered", name)
		}
	}
	if len(lines) == 0 {
		return lines, nil
	}
	result := lines
	for _, name := range processorNames {
		var err error
		result, err = pc.processors[name].Process(result)
		if err != nil {
			return nil, fmt.Errorf("%s processor failed: %w", name, err)
		}
		if len(result) == 0 {
			break
		}
	}
	return result, nil
}

// Lines splits raw command output into lines without the trailing newline.
func Lines(output string) []string {
	output = strings.TrimRight(output, "\r\n")
	if output == "" {
		return []string{}
	}
	return strings.Split(output, "\n")
}

// Tail returns the last n non-empty, trimmed lines of output.
func Tail(output string, n int) []string {
	pc := NewProcessorChain()
	pc.Register(&TailProcessor{N: n})
	lines, err := pc.Process(Lines(output), ProcessorTypeTrim, ProcessorTypeDropEmpty, ProcessorTypeTail)
	if err != nil {
		return Lines(output)
	}
	return lines
}

//Processor Implementations

// TrimProcessor trims whitespace from each line in the input.
type TrimProcessor struct{}

func (p *TrimProcessor) Name() string { return ProcessorTypeTrim }
func (p *TrimProcessor) Process(lines []string) ([]string, error) {
	trimmed := make([]string, len(lines))
	for i, line := range lines {
		trimmed[i] = strings.TrimSpace(line)
	}
	return trimmed, nil
}

// DropEmptyProcessor removes blank lines.
type DropEmptyProcessor struct{}

func (p *DropEmptyProcessor) Name() string { return ProcessorTypeDropEmpty }
func (p *DropEmptyProcessor) Process(lines []string) ([]string, error) {
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result, nil
}

// TailProcessor keeps the last N lines.
type TailProcessor struct {
	N int
}

func (p *TailProcessor) Name() string { return ProcessorTypeTail }
func (p *TailProcessor) Process(lines []string) ([]string, error) {
	if p.N < 0 {
		return nil, fmt.Errorf("negative tail length %d", p.N)
	}
	if len(lines) <= p.N {
		return lines, nil
	}
	return lines[len(lines)-p.N:], nil
}
