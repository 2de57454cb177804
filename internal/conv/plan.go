package conv

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Plan returns a snapshot of the operator: its configuration and, once
// initialized, the backend, algorithm, workspace and offsets it runs with.
func (op *Operator) Plan() (*structpb.Struct, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	cfg := map[string]any{
		"kernel":     []any{op.cfg.Kernel[0], op.cfg.Kernel[1]},
		"stride":     []any{op.cfg.Stride[0], op.cfg.Stride[1]},
		"pad":        []any{op.cfg.Pad[0], op.cfg.Pad[1]},
		"num_filter": op.cfg.NumFilter,
		"num_group":  op.cfg.NumGroup,
		"workspace":  op.cfg.WorkspaceMiB,
		"no_bias":    op.cfg.NoBias,
	}
	plan := map[string]any{
		"id":     op.id,
		"state":  op.state.String(),
		"config": cfg,
	}

	if op.state == stateReady {
		s := op.shapes
		plan["backend"] = op.handle.Name()
		plan["dtype"] = s.dtype.String()
		plan["input"] = []any{s.n, s.c, s.h, s.w}
		plan["output"] = []any{s.n, s.k, s.oh, s.ow}
		plan["filter_format"] = op.ds.FilterFormat.String()
		plan["add_mode"] = op.ds.AddMode.String()
		plan["algorithm"] = map[string]any{
			"algo":               op.algo.Algo.String(),
			"workspace_bytes":    op.algo.WorkspaceBytes,
			"workspace_elements": op.algo.WorkspaceElements,
			"workspace_limit":    op.cfg.WorkspaceLimitBytes(s.dtype),
		}
		plan["offsets"] = map[string]any{
			"data":   op.offs.Data,
			"weight": op.offs.Weight,
			"out":    op.offs.Out,
			"bias":   op.offs.Bias,
		}
	}

	st, err := structpb.NewStruct(plan)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return st, nil
}

// PlanJSON returns Plan encoded as indented protobuf JSON.
func (op *Operator) PlanJSON() ([]byte, error) {
	st, err := op.Plan()
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
}
