package plan

import (
	"errors"
	"sync"
	"testing"

	"github.com/calref/maestro/pkg/models"
)

func TestAddAndGetTask(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "p")

	id, err := s.AddTask(planID, "write docs", "writer", 70, "")
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	task, err := s.GetTask(id)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.PlanID != planID {
		t.Errorf("PlanID = %q, want %q", task.PlanID, planID)
	}
	if task.Description != "write docs" {
		t.Errorf("Description = %q", task.Description)
	}
	if task.AssignedAgent != "writer" {
		t.Errorf("AssignedAgent = %q", task.AssignedAgent)
	}
	if task.Priority != 70 {
		t.Errorf("Priority = %d, want 70", task.Priority)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Status = %q, want pending", task.Status)
	}

	p, err := s.GetPlan(planID)
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if p.TotalTasks != 1 {
		t.Errorf("TotalTasks = %d, want 1", p.TotalTasks)
	}
}

func TestAddTask_PlanNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddTask("missing", "t", "", 50, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestAddTask_ParentValidation(t *testing.T) {
	s := newTestStore(t)
	planA := mustCreatePlan(t, s, "a")
	planB := mustCreatePlan(t, s, "b")
	parent := mustAddTask(t, s, planA, "parent", "", 50)

	// Unknown parent is rejected.
	if _, err := s.AddTask(planA, "child", "", 50, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown parent error = %v, want ErrNotFound", err)
	}

	// Parent must belong to the same plan.
	if _, err := s.AddTask(planB, "child", "", 50, parent); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("cross-plan parent error = %v, want ErrInvalidInput", err)
	}

	// Valid subtask.
	childID, err := s.AddTask(planA, "child", "", 50, parent)
	if err != nil {
		t.Fatalf("AddTask with parent failed: %v", err)
	}

	subs, err := s.Subtasks(parent)
	if err != nil {
		t.Fatalf("Subtasks failed: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != childID {
		t.Errorf("Subtasks returned %d tasks", len(subs))
	}
}

func TestClaimTask(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "p")
	taskID := mustAddTask(t, s, planID, "t", "", 50)

	if err := s.ClaimTask(taskID, "agent-1"); err != nil {
		t.Fatalf("ClaimTask failed: %v", err)
	}

	task, err := s.GetTask(taskID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status != models.TaskStatusInProgress {
		t.Errorf("Status = %q, want in_progress", task.Status)
	}
	if task.ClaimedBy != "agent-1" {
		t.Errorf("ClaimedBy = %q, want agent-1", task.ClaimedBy)
	}
	if task.StartedAt == nil {
		t.Error("StartedAt not set on claim")
	}
}

func TestClaimTask_BusyVsNotFound(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "p")
	taskID := mustAddTask(t, s, planID, "t", "", 50)

	if err := s.ClaimTask(taskID, "agent-1"); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	// A second claim on a claimed task is busy, not missing.
	err := s.ClaimTask(taskID, "agent-2")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("second claim error = %v, want ErrBusy", err)
	}

	// A claim on an unknown task is missing, not busy.
	err = s.ClaimTask("no-such-task", "agent-2")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown task claim error = %v, want ErrNotFound", err)
	}
}

func TestClaimTask_ExactlyOneWinner(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "p")
	taskID := mustAddTask(t, s, planID, "contested", "", 50)

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := s.ClaimTask(taskID, "agent"); err == nil {
				wins <- n
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Errorf("%d claims succeeded, want exactly 1", won)
	}
}

func TestCompleteTask(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "p")
	taskID := mustAddTask(t, s, planID, "t", "", 50)

	// Completing a pending task is an invalid transition.
	if err := s.CompleteTask(taskID, "out"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("complete pending error = %v, want ErrInvalidState", err)
	}

	if err := s.ClaimTask(taskID, "agent"); err != nil {
		t.Fatalf("ClaimTask failed: %v", err)
	}
	if err := s.CompleteTask(taskID, "out"); err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}

	task, err := s.GetTask(taskID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status != models.TaskStatusCompleted {
		t.Errorf("Status = %q, want completed", task.Status)
	}
	if task.Output != "out" {
		t.Errorf("Output = %q", task.Output)
	}
	if task.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestFailTask_BumpsRetryCount(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "p")
	taskID := mustAddTask(t, s, planID, "t", "", 50)

	if err := s.ClaimTask(taskID, "agent"); err != nil {
		t.Fatalf("ClaimTask failed: %v", err)
	}
	if err := s.FailTask(taskID, "boom"); err != nil {
		t.Fatalf("FailTask failed: %v", err)
	}

	task, err := s.GetTask(taskID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status != models.TaskStatusFailed {
		t.Errorf("Status = %q, want failed", task.Status)
	}
	if task.Error != "boom" {
		t.Errorf("Error = %q", task.Error)
	}
	if task.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", task.RetryCount)
	}
}

func TestNextTask_PreAssignmentBeatsPriority(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "p")

	low := mustAddTask(t, s, planID, "low", "", 20)
	high := mustAddTask(t, s, planID, "high", "", 80)
	mine := mustAddTask(t, s, planID, "mine", "agent-1", 50)

	// agent-1's pre-assigned task wins despite lower priority.
	next, err := s.NextTask(planID, "agent-1")
	if err != nil {
		t.Fatalf("NextTask failed: %v", err)
	}
	if next.ID != mine {
		t.Errorf("NextTask = %q, want pre-assigned %q", next.ID, mine)
	}

	// agent-2 never sees agent-1's task; highest priority wins.
	next, err = s.NextTask(planID, "agent-2")
	if err != nil {
		t.Fatalf("NextTask failed: %v", err)
	}
	if next.ID != high {
		t.Errorf("NextTask = %q, want %q", next.ID, high)
	}

	// Drain: claim high, then low is offered.
	if err := s.ClaimTask(high, "agent-2"); err != nil {
		t.Fatalf("ClaimTask failed: %v", err)
	}
	next, err = s.NextTask(planID, "agent-2")
	if err != nil {
		t.Fatalf("NextTask failed: %v", err)
	}
	if next.ID != low {
		t.Errorf("NextTask = %q, want %q", next.ID, low)
	}
}

func TestNextTask_Exhausted(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "p")
	taskID := mustAddTask(t, s, planID, "only", "", 50)

	if err := s.ClaimTask(taskID, "agent"); err != nil {
		t.Fatalf("ClaimTask failed: %v", err)
	}

	_, err := s.NextTask(planID, "agent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("NextTask on drained plan error = %v, want ErrNotFound", err)
	}
}

func TestListTasks_StatusFilter(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "p")
	a := mustAddTask(t, s, planID, "a", "", 50)
	mustAddTask(t, s, planID, "b", "", 50)

	if err := s.ClaimTask(a, "agent"); err != nil {
		t.Fatalf("ClaimTask failed: %v", err)
	}

	pending := models.TaskStatusPending
	tasks, err := s.ListTasks(planID, &pending)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("got %d pending tasks, want 1", len(tasks))
	}

	all, err := s.ListTasks(planID, nil)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d tasks, want 2", len(all))
	}
}

func TestListTasks_EqualPriorityKeepsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "burst")

	// Added back-to-back, so created_at is identical at second
	// precision for most of them. Insertion order must still hold.
	var want []string
	for _, desc := range []string{"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7"} {
		want = append(want, mustAddTask(t, s, planID, desc, "", 50))
	}

	tasks, err := s.ListTasks(planID, nil)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != len(want) {
		t.Fatalf("got %d tasks, want %d", len(tasks), len(want))
	}
	for i, task := range tasks {
		if task.ID != want[i] {
			t.Errorf("position %d: got %q, want %q", i, task.ID, want[i])
		}
	}
}

func TestNextTask_EqualPriorityDrainsInInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	planID := mustCreatePlan(t, s, "burst")

	var want []string
	for _, desc := range []string{"first", "second", "third", "fourth"} {
		want = append(want, mustAddTask(t, s, planID, desc, "", 50))
	}

	for i, wantID := range want {
		task, err := s.NextTask(planID, "agent-1")
		if err != nil {
			t.Fatalf("NextTask %d failed: %v", i, err)
		}
		if task.ID != wantID {
			t.Fatalf("offer %d: got %q, want %q", i, task.ID, wantID)
		}
		if err := s.ClaimTask(task.ID, "agent-1"); err != nil {
			t.Fatalf("ClaimTask failed: %v", err)
		}
	}
}
