package logic

// ProcessorResult is the raw record of one processor evaluation: the
// inputs it read and what it produced. Stage evaluators collect these and
// turn them into StageResults.
type ProcessorResult struct {
	Name   string
	Type   StageResultType
	Inputs []Input
	Output any
}

// ToStageResult places the processor output at the given indices.
func (p ProcessorResult) ToStageResult(stageIndex, processorIndex int) StageResult {
	return StageResult{
		StageIndex:     stageIndex,
		ProcessorIndex: processorIndex,
		Name:           p.Name,
		Type:           p.Type,
		Value:          p.Output,
	}
}

// BuildStageResults numbers processors in order within stageIndex.
func BuildStageResults(stageIndex int, processors []ProcessorResult) StageResults {
	items := make([]StageResult, len(processors))
	for i, p := range processors {
		items[i] = p.ToStageResult(stageIndex, i)
	}
	return StageResults{items: items}
}

// InputNames lists the names of the inputs the processor read.
func (p ProcessorResult) InputNames() []string {
	names := make([]string, len(p.Inputs))
	for i, in := range p.Inputs {
		names[i] = in.Name()
	}
	return names
}
