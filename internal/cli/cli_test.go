package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// runCLI executes one command against the given database file and returns
// everything it printed. A fresh command tree per call re-applies flag
// defaults, and --config points at a missing file so host configs are
// never picked up.
func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()

	full := append([]string{
		"--quiet",
		"--db", db,
		"--config", filepath.Join(t.TempDir(), "no-config.json"),
	}, args...)

	root := newRootCmd()
	root.SetArgs(full)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// testDB returns a database path inside a fresh temp dir.
func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "depflow.db")
}

// addTask creates a task through the CLI and returns its id.
func addTask(t *testing.T, db, title string, extra ...string) string {
	t.Helper()

	args := append([]string{"add", title, "--json"}, extra...)
	out, err := runCLI(t, db, args...)
	if err != nil {
		t.Fatalf("add %q: %v", title, err)
	}

	var created taskJSON
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("parsing add output: %v\n%s", err, out)
	}
	return created.ID
}

// showTask reads a task back through the CLI.
func showTask(t *testing.T, db, id string) showOutput {
	t.Helper()

	out, err := runCLI(t, db, "show", id, "--json")
	if err != nil {
		t.Fatalf("show %s: %v", id, err)
	}

	var shown showOutput
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("parsing show output: %v\n%s", err, out)
	}
	return shown
}

func TestAddAndListRoundTrip(t *testing.T) {
	db := testDB(t)

	out, err := runCLI(t, db, "add", "Design schema", "--json",
		"-p", "high", "--due", "2026-09-30", "--estimate", "4", "--meta", "sprint=42")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	var created taskJSON
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("parsing add output: %v\n%s", err, out)
	}
	if created.Status != "Todo" {
		t.Errorf("status = %q, want Todo", created.Status)
	}
	if created.Priority != "High" {
		t.Errorf("priority = %q, want High", created.Priority)
	}
	if created.DueDate != "2026-09-30" {
		t.Errorf("due date = %q, want 2026-09-30", created.DueDate)
	}
	if created.Metadata["sprint"] != "42" {
		t.Errorf("metadata = %v, want sprint=42", created.Metadata)
	}

	out, err = runCLI(t, db, "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var tasks []taskJSON
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("parsing list output: %v\n%s", err, out)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("list returned %+v, want the created task", tasks)
	}
}

func TestDependencyBlocksAndCompletionFrees(t *testing.T) {
	db := testDB(t)
	foundation := addTask(t, db, "Lay foundation")
	walls := addTask(t, db, "Raise walls")

	out, err := runCLI(t, db, "dep", "add", foundation, walls)
	if err != nil {
		t.Fatalf("dep add: %v", err)
	}
	if !strings.Contains(out, "now blocked") {
		t.Errorf("dep add output missing block notice:\n%s", out)
	}

	// The dependent may not start while the prerequisite is open.
	_, err = runCLI(t, db, "status", walls, "in-progress")
	if err == nil {
		t.Fatal("expected blocked task to be refused")
	}
	if !strings.Contains(err.Error(), "waiting on") {
		t.Errorf("error %q does not name the unmet prerequisite", err)
	}

	// Finishing the prerequisite frees it.
	out, err = runCLI(t, db, "status", foundation, "done")
	if err != nil {
		t.Fatalf("status done: %v", err)
	}
	if !strings.Contains(out, "unblocked") {
		t.Errorf("completion output missing unblock notice:\n%s", out)
	}

	shown := showTask(t, db, walls)
	if shown.Task.Status != "Todo" {
		t.Errorf("dependent status = %q, want Todo", shown.Task.Status)
	}
	if !shown.CanProceed {
		t.Error("dependent should be free to proceed")
	}

	_, err = runCLI(t, db, "status", walls, "in-progress")
	if err != nil {
		t.Errorf("freed task should start: %v", err)
	}
}

func TestDepRmFreesDependent(t *testing.T) {
	db := testDB(t)
	first := addTask(t, db, "Pick venue")
	second := addTask(t, db, "Send invites")

	if _, err := runCLI(t, db, "dep", "add", first, second); err != nil {
		t.Fatalf("dep add: %v", err)
	}

	out, err := runCLI(t, db, "dep", "rm", first, second)
	if err != nil {
		t.Fatalf("dep rm: %v", err)
	}
	if !strings.Contains(out, "no longer blocked") {
		t.Errorf("dep rm output missing unblock notice:\n%s", out)
	}

	shown := showTask(t, db, second)
	if shown.Task.Status != "Todo" {
		t.Errorf("status after removal = %q, want Todo", shown.Task.Status)
	}
	if len(shown.Dependencies) != 0 {
		t.Errorf("dependencies remain after removal: %+v", shown.Dependencies)
	}

	// Removing it again fails cleanly.
	if _, err := runCLI(t, db, "dep", "rm", first, second); err == nil {
		t.Error("expected error for missing edge")
	}
}

func TestDepListShowsEdges(t *testing.T) {
	db := testDB(t)
	a := addTask(t, db, "Write draft")
	b := addTask(t, db, "Edit draft")

	if _, err := runCLI(t, db, "dep", "add", a, b, "--kind", "fs"); err != nil {
		t.Fatalf("dep add: %v", err)
	}

	out, err := runCLI(t, db, "dep", "list", "--json")
	if err != nil {
		t.Fatalf("dep list: %v", err)
	}
	var edges []depJSON
	if err := json.Unmarshal([]byte(out), &edges); err != nil {
		t.Fatalf("parsing dep list output: %v\n%s", err, out)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].From != a || edges[0].To != b || edges[0].Kind != "FinishToStart" {
		t.Errorf("unexpected edge %+v", edges[0])
	}
}

func TestParentLinkAndClear(t *testing.T) {
	db := testDB(t)
	epic := addTask(t, db, "Migration epic")
	sub := addTask(t, db, "Write rollback plan")

	out, err := runCLI(t, db, "parent", sub, epic)
	if err != nil {
		t.Fatalf("parent: %v", err)
	}
	if !strings.Contains(out, "now blocked") {
		t.Errorf("parent output missing block notice:\n%s", out)
	}

	shown := showTask(t, db, sub)
	if shown.Task.ParentTaskID != epic {
		t.Errorf("parent id = %q, want %q", shown.Task.ParentTaskID, epic)
	}
	if shown.Task.Status != "Blocked" {
		t.Errorf("child status = %q, want Blocked", shown.Task.Status)
	}

	if _, err := runCLI(t, db, "parent", sub, "--clear"); err != nil {
		t.Fatalf("parent --clear: %v", err)
	}

	shown = showTask(t, db, sub)
	if shown.Task.ParentTaskID != "" {
		t.Errorf("parent id survived clear: %q", shown.Task.ParentTaskID)
	}
	if shown.Task.Status != "Todo" {
		t.Errorf("status after clear = %q, want Todo", shown.Task.Status)
	}
}

func TestCreateViaAddParentFlag(t *testing.T) {
	db := testDB(t)
	epic := addTask(t, db, "Launch epic")

	out, err := runCLI(t, db, "add", "Prepare rollout checklist", "--parent", epic, "--json")
	if err != nil {
		t.Fatalf("add --parent: %v", err)
	}
	var created taskJSON
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("parsing add output: %v\n%s", err, out)
	}
	if created.ParentTaskID != epic {
		t.Errorf("parent id = %q, want %q", created.ParentTaskID, epic)
	}
	if created.Status != "Blocked" {
		t.Errorf("status = %q, want Blocked while the parent is open", created.Status)
	}
}

func TestOrderAndCriticalPath(t *testing.T) {
	db := testDB(t)
	dig := addTask(t, db, "Dig trench", "--estimate", "2")
	lay := addTask(t, db, "Lay cable", "--estimate", "3")
	test := addTask(t, db, "Test circuit", "--estimate", "4")

	if _, err := runCLI(t, db, "dep", "add", dig, lay); err != nil {
		t.Fatalf("dep add: %v", err)
	}
	if _, err := runCLI(t, db, "dep", "add", lay, test); err != nil {
		t.Fatalf("dep add: %v", err)
	}

	out, err := runCLI(t, db, "order", "--json")
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	var ordered []taskJSON
	if err := json.Unmarshal([]byte(out), &ordered); err != nil {
		t.Fatalf("parsing order output: %v\n%s", err, out)
	}
	if len(ordered) != 3 {
		t.Fatalf("expected 3 ordered tasks, got %d", len(ordered))
	}
	pos := make(map[string]int, len(ordered))
	for i, item := range ordered {
		pos[item.ID] = i
	}
	if !(pos[dig] < pos[lay] && pos[lay] < pos[test]) {
		t.Errorf("order violates dependencies: %v", pos)
	}

	out, err = runCLI(t, db, "critical-path", "--json")
	if err != nil {
		t.Fatalf("critical-path: %v", err)
	}
	var path pathOutput
	if err := json.Unmarshal([]byte(out), &path); err != nil {
		t.Fatalf("parsing critical-path output: %v\n%s", err, out)
	}
	if len(path.Tasks) != 3 {
		t.Errorf("expected the full chain on the critical path, got %d tasks", len(path.Tasks))
	}
	if path.TotalHours != 9 {
		t.Errorf("total hours = %v, want 9", path.TotalHours)
	}
}

func TestEditCommand(t *testing.T) {
	db := testDB(t)
	id := addTask(t, db, "Rough title", "--due", "2026-09-01")

	out, err := runCLI(t, db, "edit", id, "--title", "Polished title", "-p", "critical", "--actual", "1.5", "--json")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	var edited taskJSON
	if err := json.Unmarshal([]byte(out), &edited); err != nil {
		t.Fatalf("parsing edit output: %v\n%s", err, out)
	}
	if edited.Title != "Polished title" {
		t.Errorf("title = %q", edited.Title)
	}
	if edited.Priority != "Critical" {
		t.Errorf("priority = %q", edited.Priority)
	}
	if edited.ActualHours != 1.5 {
		t.Errorf("actual hours = %v", edited.ActualHours)
	}
	// Untouched fields survive.
	if edited.DueDate != "2026-09-01" {
		t.Errorf("due date lost on edit: %q", edited.DueDate)
	}

	// Dates clear with the "none" sentinel.
	if _, err := runCLI(t, db, "edit", id, "--due", "none"); err != nil {
		t.Fatalf("edit --due none: %v", err)
	}
	shown := showTask(t, db, id)
	if shown.Task.DueDate != "" {
		t.Errorf("due date = %q after clearing", shown.Task.DueDate)
	}
}

func TestRmFreesDependents(t *testing.T) {
	db := testDB(t)
	gate := addTask(t, db, "Security review")
	release := addTask(t, db, "Cut release")

	if _, err := runCLI(t, db, "dep", "add", gate, release); err != nil {
		t.Fatalf("dep add: %v", err)
	}
	if _, err := runCLI(t, db, "rm", gate); err != nil {
		t.Fatalf("rm: %v", err)
	}

	shown := showTask(t, db, release)
	if shown.Task.Status != "Todo" {
		t.Errorf("status after deleting prerequisite = %q, want Todo", shown.Task.Status)
	}
	if len(shown.Dependencies) != 0 {
		t.Errorf("edges survived the delete: %+v", shown.Dependencies)
	}
}

func TestTemplateLifecycle(t *testing.T) {
	db := testDB(t)

	out, err := runCLI(t, db, "template", "add", "Standup notes", "--pattern", "daily", "--json")
	if err != nil {
		t.Fatalf("template add: %v", err)
	}
	var tpl templateJSON
	if err := json.Unmarshal([]byte(out), &tpl); err != nil {
		t.Fatalf("parsing template output: %v\n%s", err, out)
	}
	if !tpl.Active || tpl.Occurrences != 0 {
		t.Errorf("fresh template state: %+v", tpl)
	}

	// The first occurrence is due immediately.
	out, err = runCLI(t, db, "generate")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out, "Standup notes") {
		t.Errorf("generate output missing the new task:\n%s", out)
	}

	out, err = runCLI(t, db, "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var tasks []taskJSON
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("parsing list output: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Standup notes" {
		t.Errorf("generated task missing from list: %+v", tasks)
	}

	out, err = runCLI(t, db, "template", "list", "--json")
	if err != nil {
		t.Fatalf("template list: %v", err)
	}
	var templates []templateJSON
	if err := json.Unmarshal([]byte(out), &templates); err != nil {
		t.Fatalf("parsing template list output: %v", err)
	}
	if len(templates) != 1 || templates[0].Occurrences != 1 {
		t.Errorf("template after generation: %+v", templates)
	}

	// Paused templates generate nothing.
	if _, err := runCLI(t, db, "template", "pause", tpl.ID); err != nil {
		t.Fatalf("template pause: %v", err)
	}
	out, err = runCLI(t, db, "generate")
	if err != nil {
		t.Fatalf("generate while paused: %v", err)
	}
	if !strings.Contains(out, "Nothing due.") {
		t.Errorf("paused template still generated:\n%s", out)
	}

	if _, err := runCLI(t, db, "template", "resume", tpl.ID); err != nil {
		t.Fatalf("template resume: %v", err)
	}
	out, err = runCLI(t, db, "template", "list", "--all", "--json")
	if err != nil {
		t.Fatalf("template list --all: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &templates); err != nil {
		t.Fatalf("parsing template list output: %v", err)
	}
	if len(templates) != 1 || !templates[0].Active {
		t.Errorf("template after resume: %+v", templates)
	}

	if _, err := runCLI(t, db, "template", "rm", tpl.ID); err != nil {
		t.Fatalf("template rm: %v", err)
	}
	out, _ = runCLI(t, db, "template", "list", "--all", "--json")
	if err := json.Unmarshal([]byte(out), &templates); err != nil {
		t.Fatalf("parsing template list output: %v", err)
	}
	if len(templates) != 0 {
		t.Errorf("template survived rm: %+v", templates)
	}
}

func TestReconcileOnConsistentDatabase(t *testing.T) {
	db := testDB(t)
	a := addTask(t, db, "Order parts")
	b := addTask(t, db, "Assemble")
	if _, err := runCLI(t, db, "dep", "add", a, b); err != nil {
		t.Fatalf("dep add: %v", err)
	}

	out, err := runCLI(t, db, "reconcile")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !strings.Contains(out, "Everything consistent.") {
		t.Errorf("unexpected reconcile output:\n%s", out)
	}
}

func TestRejectsBadInput(t *testing.T) {
	db := testDB(t)
	id := addTask(t, db, "Lone task")

	if _, err := runCLI(t, db, "status", id, "parked"); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := runCLI(t, db, "status", uuid.New().String(), "done"); err == nil {
		t.Error("expected error for unknown task")
	}
	if _, err := runCLI(t, db, "status", "not-a-uuid", "done"); err == nil {
		t.Error("expected error for malformed id")
	}
	if _, err := runCLI(t, db, "add", "Bad date", "--due", "tomorrow"); err == nil {
		t.Error("expected error for malformed date")
	}
	if _, err := runCLI(t, db, "dep", "add", id, id); err == nil {
		t.Error("expected error for self-dependency")
	}
}

func TestDependencyCycleRefused(t *testing.T) {
	db := testDB(t)
	a := addTask(t, db, "Chicken")
	b := addTask(t, db, "Egg")

	if _, err := runCLI(t, db, "dep", "add", a, b); err != nil {
		t.Fatalf("dep add: %v", err)
	}
	_, err := runCLI(t, db, "dep", "add", b, a)
	if err == nil {
		t.Fatal("expected cycle to be refused")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error %q does not mention the cycle", err)
	}
}
