package job

// Stage names the worker façade a DAG step dispatches to. Stage names are
// also the stage's log/metadata tag.
type Stage string

const (
	StageResearch    Stage = "research"
	StageIngest      Stage = "ingest"
	StageVerify      Stage = "verify"
	StageExport      Stage = "export"
	StageRetrieve    Stage = "retrieve"
	StageTransform   Stage = "transform"
)

// StageStep is one entry in a job type's DAG: the stage to run and the
// cumulative progress value the job reaches once that stage completes.
type StageStep struct {
	Stage          Stage
	ProgressOnDone float64
	// Optional reports whether this step may be skipped based on the job
	// spec (e.g. Verify stage only runs when spec.Verify is true).
	Optional bool
}

// DAG returns the ordered stage steps for a job type, or false if the
// type is unknown. TypeCustom's DAG is derived from spec.Stages at call
// time (see ResolveCustomDAG) since it has no fixed shape.
func DAG(t Type) ([]StageStep, bool) {
	switch t {
	case TypeResearchAndExport:
		// Research → Ingest (optional) → Verify (if spec.verify) → Export
		// Progress weights 0.2, 0.4, 0.6, 0.8, 1.0 at stage completions.
		return []StageStep{
			{Stage: StageResearch, ProgressOnDone: 0.2},
			{Stage: StageIngest, ProgressOnDone: 0.4, Optional: true},
			{Stage: StageVerify, ProgressOnDone: 0.6, Optional: true},
			{Stage: StageExport, ProgressOnDone: 0.8},
		}, true
	case TypeDataPipeline:
		return []StageStep{
			{Stage: StageRetrieve, ProgressOnDone: 0.3},
			{Stage: StageTransform, ProgressOnDone: 0.6},
			{Stage: StageExport, ProgressOnDone: 0.9},
		}, true
	case TypeRAGIngest:
		return []StageStep{
			{Stage: StageIngest, ProgressOnDone: 1.0},
		}, true
	case TypeVerification:
		return []StageStep{
			{Stage: StageVerify, ProgressOnDone: 1.0},
		}, true
	default:
		return nil, false
	}
}

// ResolveCustomDAG builds a DAG for TypeCustom from the caller-supplied
// stage list, spreading progress evenly across steps. Returns false if no
// stages were supplied (the caller should fail the job with NotImplemented
// per spec.md §4.4).
func ResolveCustomDAG(stages []string) ([]StageStep, bool) {
	if len(stages) == 0 {
		return nil, false
	}
	steps := make([]StageStep, len(stages))
	for i, s := range stages {
		steps[i] = StageStep{
			Stage:          Stage(s),
			ProgressOnDone: float64(i+1) / float64(len(stages)),
		}
	}
	return steps, true
}
