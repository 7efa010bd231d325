package scgraph

import "github.com/perf-analysis/pkg/errors"

// peekAhead implements the peek-ahead walk of the pre-issue algorithm
// (SPEC_FULL.md #4.4.1). It advances g.peekhead up to PreIssueDepth nodes
// past the frontier, resolving already-decided branches, generating
// arguments where possible, and handing ready syscall nodes to the backend
// for asynchronous preparation. It never advances the frontier itself —
// that is Issue's job, on the node that is actually being called.
func peekAhead(g *Graph) {
	if g.peekheadDistance < 0 {
		// Re-seat: peekhead fell behind (or was never started), since the
		// frontier advanced past it on a previous Issue. peekAhead only
		// ever runs from within a frontier node's own Issue, before that
		// node's Issue has advanced g.frontier (syscall_node.go), so
		// g.frontier here is still the node being issued: reseat onto
		// *its* next_node/edge_type, not onto the node itself.
		cur, ok := g.frontier.(syscallAPI)
		if !ok {
			errors.Fatal(errors.CodePluginMisuse, "scgraph: peek reseat found a non-syscall frontier")
		}
		next, edge := cur.nextNode()
		g.peekhead = next
		g.peekheadEdge = edge
		g.peekheadSawWeak = edge == EdgeWeak
		g.peekheadEpoch.CopyFrom(g.frontierEpoch)
		g.peekheadDistance = 0
		g.peekheadHitEnd = false
	}
	if g.peekheadHitEnd {
		return
	}

	budget := g.PreIssueDepth - g.peekheadDistance
	for i := 0; i < budget; i++ {
		cur := g.peekhead
		if cur == nil {
			g.peekheadHitEnd = true
			return
		}

		if cur.Type() == NodeBranch {
			bn := cur.(*BranchNode)
			if !bn.hasDecision(g.peekheadEpoch) {
				if !bn.GenerateDecision(g.peekheadEpoch) {
					// Decision barrier: the plugin cannot decide yet from
					// peeked-ahead state alone. Stop without marking
					// hit_end — a later real Issue may supply what's
					// missing and peeking can resume past here then.
					return
				}
			}
			// Peek traversal must never consume the decision the real
			// frontier still needs (SPEC_FULL.md #12): do_remove=false.
			next := bn.PickBranch(g.peekheadEpoch, false)
			g.peekhead = next
			g.peekheadDistance++
			continue
		}

		sn, ok := cur.(syscallAPI)
		if !ok {
			errors.Fatal(errors.CodePluginMisuse, "scgraph: frontier node does not satisfy the syscall node contract")
		}

		if !isForeactable(g.peekheadSawWeak, cur.Type()) {
			// A side-effecting syscall reachable only through a walk that
			// has crossed a weak edge may never run on the real path;
			// pre-issuing it would apply a side effect the caller's own
			// control flow never asked for. The walk may still not have
			// decided its real continuation, so once any edge crossed is
			// Weak, every side-effecting node for the rest of this walk
			// stays blocked — not just the one immediately past the edge.
			// Stop peeking here for good.
			g.peekheadHitEnd = true
			return
		}

		if sn.stageAt(g.peekheadEpoch) == StageNotReady {
			if !sn.tryGenerateArgs(g.peekheadEpoch) {
				// Args not computable yet from peeked-ahead state; stop,
				// but do not mark hit_end for the same reason as branches.
				return
			}
		}

		if sn.stageAt(g.peekheadEpoch) == StageArgReady && !sn.neverAsync() {
			if err := sn.markPrepared(g, g.peekheadEpoch); err != nil {
				errors.FatalWrap(errors.CodeBackendSubmitFailed, "scgraph: backend prepare failed", err)
			}
			g.numPrepared++
			if g.preparedDistance < 0 {
				g.preparedDistance = g.peekheadDistance
			}
		}

		next, edge := sn.nextNode()
		g.peekhead = next
		g.peekheadEdge = edge
		g.peekheadSawWeak = g.peekheadSawWeak || edge == EdgeWeak
		g.peekheadDistance++
	}
}

// isForeactable applies the foreactability rule (SPEC_FULL.md #4.4.1):
// a node may be pre-issued unless this peek walk has crossed a Weak edge at
// any point so far and the node itself is side-effecting. This is sticky for
// the remainder of one walk — once a Weak edge is crossed, no later Must
// edge un-crosses it, since the real frontier may still end up taking the
// weak branch's alternative and never reach this point at all.
func isForeactable(sawWeak bool, nt NodeType) bool {
	return !(sawWeak && nt == NodeSyscallSideEffecting)
}

// maybeFlushPrepared submits the current prepared batch once it is large
// enough, or once the distance from the frontier to the nearest prepared
// node has shrunk to where the frontier will need it imminently
// (SPEC_FULL.md #4.4.1).
func maybeFlushPrepared(g *Graph) {
	if len(g.pendingFlush) == 0 {
		return
	}
	if g.numPrepared >= g.PreIssueDepth/2 || g.preparedDistance <= 1 {
		if _, err := g.Backend.SubmitAll(); err != nil {
			errors.FatalWrap(errors.CodeBackendSubmitFailed, "scgraph: backend submit_all failed", err)
		}
		for _, p := range g.pendingFlush {
			p.node.SetStage(p.ep, StageOnTheFly)
		}
		g.pendingFlush = g.pendingFlush[:0]
		g.numPrepared = 0
		g.preparedDistance = -1
	}
}
