package demoscenarios

import (
	"fmt"
	"os"

	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/pkg/scgapi"
	"github.com/perf-analysis/pkg/utils"
)

// BuildNamed constructs one of the bundled scenario graphs by name,
// without entering or driving it, for scgdemo dump-graph. It reuses a
// dedicated graph id namespace (200+) distinct from the Run* functions' so
// a dump-graph invocation never collides with a "run all" in the same
// process.
func BuildNamed(log utils.Logger, name string, opts BackendOpts) (*scgapi.API, *scgraph.Graph, uint32, error) {
	var graphID uint32
	switch name {
	case "chain":
		graphID = 201
	case "branch":
		graphID = 202
	case "loop", "drain":
		graphID = 203
	case "lsm":
		graphID = 204
	default:
		return nil, nil, 0, fmt.Errorf("demoscenarios: unknown scenario %q", name)
	}
	setGraphEnv(graphID, opts)

	api := scgapi.New(log)
	g := api.CreateSCGraph(graphID, 1)
	path := "/nonexistent" // never opened: dump-graph only inspects structure

	switch name {
	case "chain":
		st := &chainState{}
		api.AddSyscallOpen(graphID, 1, "open", nil, false,
			func([]int) (string, int, uint32, bool) { return path, os.O_RDONLY, 0, true },
			func(_ []int, rc int64) {
				if rc >= 0 {
					st.fd, st.fdReady = int(rc), true
				}
			}, true)
		api.AddSyscallPread(graphID, 2, "read1", nil,
			func([]int) (int, int, int64, bool) { return 0, 64, 0, st.fdReady }, nil, false, 64)
		api.AddSyscallPread(graphID, 3, "read2", nil,
			func([]int) (int, int, int64, bool) { return 0, 64, 64, st.fdReady }, nil, false, 64)
		api.AddSyscallClose(graphID, 4, "close", nil,
			func([]int) (int, bool) { return 0, st.fdReady }, nil, false)
		api.SyscallSetNext(graphID, 1, 2, false)
		api.SyscallSetNext(graphID, 2, 3, false)
		api.SyscallSetNext(graphID, 3, 4, false)

	case "branch":
		api.AddSyscallFstat(graphID, 1, "fstat", nil, func([]int) (int, bool) { return 0, true }, nil, true)
		api.AddBranchNode(graphID, 2, "size_branch", nil, func([]int) (int, bool) { return 0, true }, 2, false)
		api.AddSyscallPread(graphID, 3, "big_read", nil, func([]int) (int, int, int64, bool) { return 0, 4096, 0, true }, nil, false, 4096)
		api.AddSyscallPread(graphID, 4, "small_read", nil, func([]int) (int, int, int64, bool) { return 0, 16, 0, true }, nil, false, 16)
		api.AddSyscallClose(graphID, 5, "close", nil, func([]int) (int, bool) { return 0, true }, nil, false)
		api.SyscallSetNext(graphID, 1, 2, false)
		api.BranchAppendChild(graphID, 2, 3, -1)
		api.BranchAppendChild(graphID, 2, 4, -1)
		api.SyscallSetNext(graphID, 3, 5, false)
		api.SyscallSetNext(graphID, 4, 5, false)

	case "loop", "drain":
		loopDim := []int{0}
		api.AddBranchNode(graphID, 1, "loop_cond", loopDim,
			func(epochCounters []int) (int, bool) {
				if epochCounters[0] < loopIterations {
					return 0, true
				}
				return 1, true
			}, 2, true)
		api.AddSyscallPread(graphID, 2, "read_iter", loopDim,
			func(epochCounters []int) (int, int, int64, bool) {
				idx := epochCounters[0] - 1
				return 0, loopBlockSize, int64(idx * loopBlockSize), true
			}, nil, false, loopBlockSize)
		api.AddSyscallClose(graphID, 3, "close", nil, func([]int) (int, bool) { return 0, true }, nil, false)
		api.BranchAppendChild(graphID, 1, 2, 0)
		api.BranchAppendChild(graphID, 1, 3, -1)
		api.SyscallSetNext(graphID, 2, 1, false)

	case "lsm":
		const levels, recordSize = 3, 256
		for i := 0; i < levels; i++ {
			api.AddSyscallPread(graphID, uint32(i+1), fmt.Sprintf("level_%d_get", i), nil,
				func([]int) (int, int, int64, bool) { return 0, recordSize, 0, true }, nil, i == 0, recordSize)
		}
		for i := 0; i < levels-1; i++ {
			api.SyscallSetNext(graphID, uint32(i+1), uint32(i+2), false)
		}
	}

	api.SetSCGraphBuilt(graphID)
	return api, g, graphID, nil
}

// GraphDump is the demo-only JSON graph-dump shape of SPEC_FULL.md #12,
// grounded on the teacher's internal/callgraph Node/Edge/CallGraph model:
// a flat node list plus a flat edge list, instead of the teacher's nested
// tree, since an SCGraph's edges carry must/weak/branch-child kinds that
// don't fit a parent/child call-graph shape.
type GraphDump struct {
	GraphID       uint32     `json:"graphId"`
	StartNodeID   uint32     `json:"startNodeId"`
	PreIssueDepth int        `json:"preIssueDepth"`
	Nodes         []DumpNode `json:"nodes"`
	Edges         []DumpEdge `json:"edges"`
}

// DumpNode is one node's static shape, with no runtime stage/epoch state
// (the graph is dumped immediately after SetSCGraphBuilt, before anything
// drives it).
type DumpNode struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// DumpEdge is one edge: Must/Weak for a syscall node's successor, or
// BranchChild/BranchBackEdge/BranchEnd for a branch node's children.
type DumpEdge struct {
	From uint32 `json:"from"`
	To   uint32 `json:"to"`
	Kind string `json:"kind"`
	End  bool   `json:"end,omitempty"`
}

// DumpGraph walks g's registered nodes and serializes their static
// structure, for the scgdemo dump-graph subcommand.
func DumpGraph(graphID uint32, g *scgraph.Graph) GraphDump {
	dump := GraphDump{
		GraphID:       graphID,
		PreIssueDepth: g.PreIssueDepth,
	}
	if id, ok := g.InitialNodeID(); ok {
		dump.StartNodeID = id
	}

	for _, n := range g.AllNodes() {
		dump.Nodes = append(dump.Nodes, DumpNode{
			ID:   n.NodeID(),
			Name: n.Name(),
			Type: n.Type().String(),
		})

		switch n.Type() {
		case scgraph.NodeBranch:
			bn := n.(*scgraph.BranchNode)
			for i, child := range bn.Children() {
				if child == nil {
					dump.Edges = append(dump.Edges, DumpEdge{From: n.NodeID(), Kind: "branch_end", End: true})
					continue
				}
				kind := "branch_child"
				if bn.EpochDims()[i] >= 0 {
					kind = "branch_back_edge"
				}
				dump.Edges = append(dump.Edges, DumpEdge{From: n.NodeID(), To: child.NodeID(), Kind: kind})
			}
		default:
			sn, ok := n.(interface {
				Next() (scgraph.Node, scgraph.EdgeType)
			})
			if !ok {
				continue
			}
			next, edge := sn.Next()
			if next == nil {
				dump.Edges = append(dump.Edges, DumpEdge{From: n.NodeID(), Kind: "end", End: true})
				continue
			}
			kind := "must"
			if edge == scgraph.EdgeWeak {
				kind = "weak"
			}
			dump.Edges = append(dump.Edges, DumpEdge{From: n.NodeID(), To: next.NodeID(), Kind: kind})
		}
	}
	return dump
}
