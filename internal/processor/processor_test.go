package processor

import (
	"reflect"
	"testing"
)

func TestTrimProcessor(t *testing.T) {
	p := &TrimProcessor{}
	input := []string{"  hello    ", " world "}
	expected := []string{"hello", "world"}
	result, err := p.Process(input)
	if err != nil {
		t.Fatalf("TrimProcessor failed: %v", err)
	}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("TrimProcessor: got %v, want %v", result, expected)
	}
}

func TestTailProcessor(t *testing.T) {
	p := &TailProcessor{N: 2}
	result, err := p.Process([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("TailProcessor failed: %v", err)
	}
	if !reflect.DeepEqual(result, []string{"b", "c"}) {
		t.Errorf("TailProcessor: got %v", result)
	}
	if _, err := (&TailProcessor{N: -1}).Process([]string{"a"}); err == nil {
		t.Error("TailProcessor: expected error for negative length")
	}
}

func TestProcessorChain(t *testing.T) {
	pc := NewProcessorChain()
	input := []string{"Operations to perform: ", "", "  Apply all migrations  "}
	expected := []string{"Operations to perform:", "Apply all migrations"}
	result, err := pc.Process(input, ProcessorTypeTrim, ProcessorTypeDropEmpty)
	if err != nil {
		t.Fatalf("ProcessorChain failed: %v", err)
	}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("ProcessorChain: got %v, want %v", result, expected)
	}

	if _, err := pc.Process(input, "upper"); err == nil {
		t.Error("ProcessorChain: expected error for unregistered processor")
	}
}

func TestTail(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		n        int
		expected []string
	}{
		{
			name:     "empty output",
			output:   "",
			n:        5,
			expected: []string{},
		},
		{
			name:     "short output",
			output:   "line one\n\n  line two \n",
			n:        5,
			expected: []string{"line one", "line two"},
		},
		{
			name:     "long output",
			output:   "1\n2\n3\n4\n5\n",
			n:        2,
			expected: []string{"4", "5"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Tail(tt.output, tt.n)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("Tail: got %v, want %v", result, tt.expected)
			}
		})
	}
}
