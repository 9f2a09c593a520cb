package workflow

import (
	"testing"

	"github.com/mmdatafocus/easytask_backend/models"
)

func strPtr(s string) *string { return &s }

func emptySnapshots() (map[string]studentRef, map[string]bool) {
	return map[string]studentRef{}, map[string]bool{}
}

func TestBuildIngestPlanCleanNewRows(t *testing.T) {
	students, flags := emptySnapshots()
	rows := []Row{
		{IndexNumber: "100", Name: "Alice", Position: 2},
		{IndexNumber: "200", Name: "Bob", Position: 3},
	}

	plan, result := buildIngestPlan(rows, models.FlagSourceExcel, students, flags)

	if result.Processed != 2 || result.Added != 2 || result.Incremented != 0 || result.Flagged != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(plan.creates) != 2 {
		t.Fatalf("expected 2 staged creates, got %d", len(plan.creates))
	}
	if plan.creates[0].IndexNumber != "100" || plan.creates[0].AssignmentCount != 1 {
		t.Errorf("unexpected first create: %+v", plan.creates[0])
	}
	if plan.creates[0].Name == nil || *plan.creates[0].Name != "Alice" {
		t.Errorf("expected name Alice, got %v", plan.creates[0].Name)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no row errors, got %v", result.Errors)
	}
}

func TestBuildIngestPlanDuplicateInBatch(t *testing.T) {
	students, flags := emptySnapshots()
	rows := []Row{
		{IndexNumber: "100", Name: "Alice", Position: 2},
		{IndexNumber: "100", Name: "Bob", Position: 3},
	}

	plan, result := buildIngestPlan(rows, models.FlagSourceExcel, students, flags)

	if result.Processed != 2 || result.Added != 1 || result.Flagged != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(plan.creates) != 1 || plan.creates[0].Name == nil || *plan.creates[0].Name != "Alice" {
		t.Fatalf("first occurrence should become the student: %+v", plan.creates)
	}
	if len(plan.flags) != 1 {
		t.Fatalf("expected 1 flag, got %d", len(plan.flags))
	}
	flag := plan.flags[0]
	if flag.IssueType != models.IssueTypeDuplicateIndex {
		t.Errorf("expected DUPLICATE_INDEX, got %s", flag.IssueType)
	}
	if flag.IndexNumber != "100" || flag.Name == nil || *flag.Name != "Bob" {
		t.Errorf("flag should carry the duplicate row's values: %+v", flag)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 row error, got %d", len(result.Errors))
	}
	if result.Errors[0].Row != 3 || result.Errors[0].Issue != issueDuplicateIndex {
		t.Errorf("unexpected row error: %+v", result.Errors[0])
	}
}

func TestBuildIngestPlanIncrementExisting(t *testing.T) {
	students := map[string]studentRef{
		"200": {ID: 7, Name: strPtr("Bob"), AssignmentCount: 5},
	}
	rows := []Row{{IndexNumber: "200", Name: "Bob", Position: 2}}

	plan, result := buildIngestPlan(rows, models.FlagSourceExcel, students, map[string]bool{})

	if result.Incremented != 1 || result.Added != 0 || result.Flagged != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if plan.increments[7] != 1 {
		t.Errorf("expected increment of 1 for student 7, got %d", plan.increments[7])
	}
	if len(plan.creates) != 0 || len(plan.flags) != 0 {
		t.Errorf("increment must not stage creates or flags")
	}
}

func TestBuildIngestPlanDuplicateOfExistingStudent(t *testing.T) {
	// First occurrence increments; the second is an in-batch duplicate and
	// must be flagged rather than incremented again.
	students := map[string]studentRef{
		"200": {ID: 7, AssignmentCount: 5},
	}
	rows := []Row{
		{IndexNumber: "200", Name: "", Position: 2},
		{IndexNumber: "200", Name: "", Position: 3},
	}

	plan, result := buildIngestPlan(rows, models.FlagSourceExcel, students, map[string]bool{})

	if result.Incremented != 1 || result.Flagged != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if plan.increments[7] != 1 {
		t.Errorf("expected a single increment, got %d", plan.increments[7])
	}
	if len(plan.flags) != 1 || plan.flags[0].IssueType != models.IssueTypeDuplicateIndex {
		t.Fatalf("second occurrence should flag DUPLICATE_INDEX: %+v", plan.flags)
	}
}

func TestBuildIngestPlanConflictWithUnresolvedFlag(t *testing.T) {
	students, _ := emptySnapshots()
	unresolved := map[string]bool{"300": true}
	rows := []Row{{IndexNumber: "300", Name: "Carol", Position: 2}}

	plan, result := buildIngestPlan(rows, models.FlagSourceManual, students, unresolved)

	if result.Flagged != 1 || result.Added != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	flag := plan.flags[0]
	if flag.IssueType != models.IssueTypeConflict {
		t.Errorf("expected CONFLICT, got %s", flag.IssueType)
	}
	if flag.Source != models.FlagSourceManual {
		t.Errorf("expected manual source, got %s", flag.Source)
	}
	if result.Errors[0].Issue != issueConflict {
		t.Errorf("unexpected issue text: %s", result.Errors[0].Issue)
	}
}

func TestBuildIngestPlanMissingName(t *testing.T) {
	students, flags := emptySnapshots()
	rows := []Row{{IndexNumber: "400", Name: "   ", Position: 2}}

	plan, result := buildIngestPlan(rows, models.FlagSourceExcel, students, flags)

	if result.Flagged != 1 || result.Added != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	flag := plan.flags[0]
	if flag.IssueType != models.IssueTypeMissingName {
		t.Errorf("expected MISSING_NAME, got %s", flag.IssueType)
	}
	if flag.Name != nil {
		t.Errorf("missing-name flag should not carry a name, got %v", *flag.Name)
	}
}

func TestBuildIngestPlanMissingNameForExistingStudentStillIncrements(t *testing.T) {
	// Existing-student rule outranks the missing-name rule.
	students := map[string]studentRef{"500": {ID: 3, AssignmentCount: 1}}
	rows := []Row{{IndexNumber: "500", Name: "", Position: 2}}

	plan, result := buildIngestPlan(rows, models.FlagSourceExcel, students, map[string]bool{})

	if result.Incremented != 1 || result.Flagged != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if plan.increments[3] != 1 {
		t.Errorf("expected increment for student 3")
	}
}

func TestBuildIngestPlanExistingStudentOutranksConflict(t *testing.T) {
	// An index present in both snapshots increments; the unresolved flag does
	// not block rows for students that already exist.
	students := map[string]studentRef{"600": {ID: 9, AssignmentCount: 2}}
	unresolved := map[string]bool{"600": true}
	rows := []Row{{IndexNumber: "600", Name: "Dan", Position: 2}}

	_, result := buildIngestPlan(rows, models.FlagSourceExcel, students, unresolved)

	if result.Incremented != 1 || result.Flagged != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestBuildIngestPlanNoDataLoss(t *testing.T) {
	students := map[string]studentRef{"200": {ID: 7, AssignmentCount: 5}}
	unresolved := map[string]bool{"300": true}
	rows := []Row{
		{IndexNumber: "100", Name: "Alice", Position: 2},
		{IndexNumber: "200", Name: "Bob", Position: 3},
		{IndexNumber: "300", Name: "Carol", Position: 4},
		{IndexNumber: "400", Name: "", Position: 5},
		{IndexNumber: "100", Name: "Eve", Position: 6},
	}

	plan, result := buildIngestPlan(rows, models.FlagSourceExcel, students, unresolved)

	if result.Processed != len(rows) {
		t.Fatalf("processed %d of %d rows", result.Processed, len(rows))
	}
	if got := result.Added + result.Incremented + result.Flagged; got != result.Processed {
		t.Errorf("added+incremented+flagged = %d, want %d", got, result.Processed)
	}
	staged := len(plan.creates) + len(plan.flags)
	for _, delta := range plan.increments {
		staged += delta
	}
	if staged != result.Processed {
		t.Errorf("staged effects = %d, want %d", staged, result.Processed)
	}
}

func TestBuildIngestPlanDeterministic(t *testing.T) {
	students := map[string]studentRef{"200": {ID: 7, AssignmentCount: 5}}
	unresolved := map[string]bool{"300": true}
	rows := []Row{
		{IndexNumber: "100", Name: "Alice", Position: 2},
		{IndexNumber: "200", Name: "Bob", Position: 3},
		{IndexNumber: "300", Name: "Carol", Position: 4},
		{IndexNumber: "100", Name: "Eve", Position: 5},
	}

	_, first := buildIngestPlan(rows, models.FlagSourceExcel, students, unresolved)
	for i := 0; i < 5; i++ {
		_, again := buildIngestPlan(rows, models.FlagSourceExcel, students, unresolved)
		if again.Added != first.Added || again.Incremented != first.Incremented || again.Flagged != first.Flagged {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestBuildIngestPlanTrimsWhitespace(t *testing.T) {
	students := map[string]studentRef{"200": {ID: 7, AssignmentCount: 5}}
	rows := []Row{{IndexNumber: "  200  ", Name: " Bob ", Position: 2}}

	plan, result := buildIngestPlan(rows, models.FlagSourceExcel, students, map[string]bool{})

	if result.Incremented != 1 {
		t.Fatalf("whitespace-padded index should match the snapshot: %+v", result)
	}
	if len(plan.creates) != 0 {
		t.Errorf("should not stage a create for a padded existing index")
	}
}

func TestBuildIngestPlanPositionFallback(t *testing.T) {
	students, flags := emptySnapshots()
	rows := []Row{
		{IndexNumber: "100", Name: "Alice"},
		{IndexNumber: "100", Name: "Bob"},
	}

	_, result := buildIngestPlan(rows, models.FlagSourceManual, students, flags)

	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 row error, got %d", len(result.Errors))
	}
	if result.Errors[0].Row != 2 {
		t.Errorf("expected in-batch position 2, got %d", result.Errors[0].Row)
	}
}
