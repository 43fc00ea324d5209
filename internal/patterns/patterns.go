// Package patterns provides prebuilt workflow graphs for common
// multi-agent collaboration shapes. Each constructor returns a ready
// workflow; callers tune prompts or add edges before executing.
package patterns

import (
	"fmt"

	"github.com/calref/maestro/internal/workflow"
	"github.com/calref/maestro/pkg/models"
)

// ReviewRefineLoop builds a draft/review/refine cycle: the worker
// drafts, the reviewer scores, and work loops back to the worker until
// the reviewer sets approved=true in run state, bounded by maxRounds.
func ReviewRefineLoop(name, workerID, reviewerID string, maxRounds int) (*workflow.Workflow, error) {
	if maxRounds < 1 {
		maxRounds = 3
	}
	wf := workflow.New(name, "Iterative draft, review, and refine loop")

	if _, err := wf.AddActionNode("draft", workerID,
		"Produce a first draft of the requested work."); err != nil {
		return nil, err
	}
	if _, err := wf.AddActionNode("review", reviewerID,
		"Review the draft. If it is acceptable, state that you approve. "+
			"Otherwise list the specific changes needed."); err != nil {
		return nil, err
	}
	if _, err := wf.AddActionNode("refine", workerID,
		"Revise the draft to address every review comment."); err != nil {
		return nil, err
	}
	if _, err := wf.AddActionNode("finalize", workerID,
		"Produce the final version incorporating all accepted changes."); err != nil {
		return nil, err
	}

	if err := wf.AddEdge("draft", "review", ""); err != nil {
		return nil, err
	}
	if err := wf.AddEdge("review", "finalize", `approved == "true"`); err != nil {
		return nil, err
	}
	if err := wf.AddEdge("review", "refine",
		fmt.Sprintf(`rounds < "%d"`, maxRounds)); err != nil {
		return nil, err
	}
	// Out of rounds and still unapproved: ship what we have.
	if err := wf.AddEdge("review", "finalize", ""); err != nil {
		return nil, err
	}
	if err := wf.AddEdge("refine", "review", ""); err != nil {
		return nil, err
	}

	if err := wf.SetEntry("draft"); err != nil {
		return nil, err
	}
	return wf, nil
}

// ParallelAnalysis builds a fan-out/fan-in graph: each analyst gets
// its own branch off a parallel node, and the synthesizer merges every
// branch result at the converge node.
func ParallelAnalysis(name string, analystIDs []string, synthesizerID string) (*workflow.Workflow, error) {
	if len(analystIDs) == 0 {
		return nil, fmt.Errorf("at least one analyst is required")
	}
	wf := workflow.New(name, "Parallel analysis with synthesis")

	if _, err := wf.AddNode("fanout", models.NodeParallel); err != nil {
		return nil, err
	}
	merge, err := wf.AddNode("synthesize", models.NodeConverge)
	if err != nil {
		return nil, err
	}
	merge.AgentID = synthesizerID
	merge.Prompt = "Synthesize the branch analyses into a single coherent result."

	for i, analyst := range analystIDs {
		nodeID := fmt.Sprintf("analyze_%d", i+1)
		if _, err := wf.AddActionNode(nodeID, analyst,
			"Analyze the input from your own perspective and report findings."); err != nil {
			return nil, err
		}
		if err := wf.AddEdge("fanout", nodeID, ""); err != nil {
			return nil, err
		}
		if err := wf.AddEdge(nodeID, "synthesize", ""); err != nil {
			return nil, err
		}
	}

	if err := wf.SetEntry("fanout"); err != nil {
		return nil, err
	}
	return wf, nil
}

// SequentialPlanning builds a straight pipeline through the given
// agents, each stage receiving the previous stage's output.
func SequentialPlanning(name string, stages []Stage) (*workflow.Workflow, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}
	wf := workflow.New(name, "Sequential multi-stage pipeline")

	prev := ""
	for i, stage := range stages {
		nodeID := stage.ID
		if nodeID == "" {
			nodeID = fmt.Sprintf("stage_%d", i+1)
		}
		if _, err := wf.AddActionNode(nodeID, stage.AgentID, stage.Prompt); err != nil {
			return nil, err
		}
		if prev != "" {
			if err := wf.AddEdge(prev, nodeID, ""); err != nil {
				return nil, err
			}
		}
		prev = nodeID
	}

	if err := wf.SetEntry(wf.NodeIDs()[0]); err != nil {
		return nil, err
	}
	return wf, nil
}

// Stage is one step of a sequential pipeline.
type Stage struct {
	ID      string
	AgentID string
	Prompt  string
}

// ConsensusBuilding builds a proposal/discussion graph: a proposer
// drafts, a decision node routes on the consensus_reached state key,
// and discussion loops until the moderator records consensus or sends
// the run to a fallback escalation node.
func ConsensusBuilding(name, proposerID, moderatorID string) (*workflow.Workflow, error) {
	wf := workflow.New(name, "Proposal discussion until consensus")

	if _, err := wf.AddActionNode("propose", proposerID,
		"Draft a concrete proposal for the group to discuss."); err != nil {
		return nil, err
	}
	if _, err := wf.AddActionNode("discuss", moderatorID,
		"Run one round of discussion on the proposal and record whether "+
			"the group has reached consensus."); err != nil {
		return nil, err
	}
	if _, err := wf.AddNode("check", models.NodeDecision); err != nil {
		return nil, err
	}
	if _, err := wf.AddActionNode("conclude", moderatorID,
		"State the agreed outcome and the key points of consensus."); err != nil {
		return nil, err
	}
	if _, err := wf.AddActionNode("escalate", moderatorID,
		"Summarize the unresolved disagreement and options for a human decision."); err != nil {
		return nil, err
	}

	if err := wf.AddEdge("propose", "discuss", ""); err != nil {
		return nil, err
	}
	if err := wf.AddEdge("discuss", "check", ""); err != nil {
		return nil, err
	}
	if err := wf.AddEdge("check", "conclude", `consensus_reached == "true"`); err != nil {
		return nil, err
	}
	if err := wf.AddEdge("check", "discuss", `rounds < "5"`); err != nil {
		return nil, err
	}
	if err := wf.AddEdge("check", "escalate", ""); err != nil {
		return nil, err
	}

	if err := wf.SetEntry("propose"); err != nil {
		return nil, err
	}
	return wf, nil
}
