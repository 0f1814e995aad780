package flow

import (
	"fmt"
	"strings"
)

// ValidationReport is the outcome of a dry run. It carries fatal errors and
// non-fatal warnings; validation itself never fails the process.
type ValidationReport struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationReport) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationReport) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateWorkflow verifies a decoded workflow without executing it:
// id and flow are present, every phase/node reference used in the flow or in
// phases resolves, and every named node, referenced or not, carries a decoded
// payload of a known primitive type. Unreferenced phases and nodes produce
// warnings.
func ValidateWorkflow(wf *Workflow) *ValidationReport {
	report := &ValidationReport{}
	if wf == nil {
		report.errorf("workflow document is missing")
		report.Valid = false
		return report
	}
	if wf.ID == "" {
		report.errorf("workflow id is required")
	}
	if wf.Flow == nil || (wf.Flow.Single == nil && len(wf.Flow.Sequence) == 0) {
		report.errorf("workflow flow is required")
	}

	usedPhases := map[string]bool{}
	usedNodes := map[string]bool{}

	if wf.Flow != nil {
		for i, item := range wf.Flow.Items() {
			if item.Node != nil {
				continue
			}
			kind, name, err := splitRef(item.Ref)
			if err != nil {
				report.errorf("flow item %d: %v", i, err)
				continue
			}
			switch kind {
			case "phase":
				if _, ok := wf.Phases[name]; !ok {
					report.errorf("flow item %d: phase %q not found", i, name)
				}
				usedPhases[name] = true
			case "node":
				if _, ok := wf.Nodes[name]; !ok {
					report.errorf("flow item %d: node %q not found", i, name)
				}
				usedNodes[name] = true
			}
		}
	}

	for phaseName, phase := range wf.Phases {
		if phase == nil || len(phase.Nodes) == 0 {
			report.warnf("phase %q has no nodes", phaseName)
			continue
		}
		for _, ref := range phase.Nodes {
			name := strings.TrimPrefix(ref, "node:")
			if _, ok := wf.Nodes[name]; !ok {
				report.errorf("phase %q: node %q not found", phaseName, name)
			}
			usedNodes[name] = true
		}
	}

	for name, node := range wf.Nodes {
		if node == nil || node.Data == nil {
			report.errorf("node %q has no primitive payload", name)
			continue
		}
		if !primitiveTypes[node.Type] {
			report.errorf("node %q has unknown type %q", name, node.Type)
		}
		if !usedNodes[name] {
			report.warnf("node %q is never referenced", name)
		}
	}
	for name := range wf.Phases {
		if !usedPhases[name] {
			report.warnf("phase %q is never referenced", name)
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}

// splitRef parses a "phase:<name>" or "node:<name>" reference.
func splitRef(ref string) (kind, name string, err error) {
	switch {
	case strings.HasPrefix(ref, "phase:"):
		return "phase", strings.TrimPrefix(ref, "phase:"), nil
	case strings.HasPrefix(ref, "node:"):
		return "node", strings.TrimPrefix(ref, "node:"), nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrReferenceMalformed, ref)
	}
}
