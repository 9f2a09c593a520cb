package workflow

import (
	"testing"

	"github.com/mmdatafocus/easytask_backend/models"
)

func pendingFlag(indexNumber string, name *string, count int) *models.FlaggedRecord {
	return &models.FlaggedRecord{
		ID:              1,
		IndexNumber:     indexNumber,
		Name:            name,
		IssueType:       models.IssueTypeMissingName,
		Source:          models.FlagSourceExcel,
		AssignmentCount: count,
	}
}

func TestPlanResolutionApprove(t *testing.T) {
	flag := pendingFlag("100", strPtr("Alice"), 2)

	plan, err := planResolution(flag, models.ResolutionActionApprove, ResolveOptions{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.createStudent == nil {
		t.Fatal("approve should create a student")
	}
	if plan.createStudent.IndexNumber != "100" || plan.createStudent.AssignmentCount != 2 {
		t.Errorf("unexpected student: %+v", plan.createStudent)
	}
	if plan.createStudent.Name == nil || *plan.createStudent.Name != "Alice" {
		t.Errorf("approve should carry the flag name forward")
	}
	if plan.resolution != models.FlagResolutionApproved {
		t.Errorf("expected approved resolution, got %s", plan.resolution)
	}
}

func TestPlanResolutionApproveWithNameOverride(t *testing.T) {
	flag := pendingFlag("100", nil, 1)

	plan, err := planResolution(flag, models.ResolutionActionApprove, ResolveOptions{Name: "Alice B."}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.createStudent.Name == nil || *plan.createStudent.Name != "Alice B." {
		t.Errorf("override name should win, got %v", plan.createStudent.Name)
	}
}

func TestPlanResolutionApproveFailsWhenIndexTaken(t *testing.T) {
	flag := pendingFlag("100", strPtr("Alice"), 1)
	existing := &models.Student{ID: 4, IndexNumber: "100"}

	if _, err := planResolution(flag, models.ResolutionActionApprove, ResolveOptions{}, existing, nil); err == nil {
		t.Fatal("approve must fail when the index number is already taken")
	}
}

func TestPlanResolutionEditRequiresName(t *testing.T) {
	flag := pendingFlag("100", nil, 1)

	if _, err := planResolution(flag, models.ResolutionActionEdit, ResolveOptions{Name: "  "}, nil, nil); err == nil {
		t.Fatal("edit without a name must fail")
	}
}

func TestPlanResolutionEditCreatesWhenNoStudent(t *testing.T) {
	flag := pendingFlag("100", nil, 3)

	plan, err := planResolution(flag, models.ResolutionActionEdit, ResolveOptions{Name: "Alice"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.createStudent == nil || plan.createStudent.AssignmentCount != 3 {
		t.Fatalf("edit with no existing student should create one: %+v", plan.createStudent)
	}
	if plan.resolution != models.FlagResolutionEdit {
		t.Errorf("expected edit resolution, got %s", plan.resolution)
	}
	if plan.message != "Added to main records." {
		t.Errorf("unexpected message: %s", plan.message)
	}
}

func TestPlanResolutionEditMergesIntoExisting(t *testing.T) {
	flag := pendingFlag("100", nil, 3)
	existing := &models.Student{ID: 4, IndexNumber: "100", AssignmentCount: 2}

	plan, err := planResolution(flag, models.ResolutionActionEdit, ResolveOptions{Name: "Alice"}, existing, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.createStudent != nil {
		t.Fatal("edit over an existing student must not create")
	}
	if plan.updateStudentId != 4 || plan.countDelta != 3 {
		t.Errorf("expected delta 3 into student 4, got %+v", plan)
	}
	if plan.setName == nil || *plan.setName != "Alice" {
		t.Errorf("edit should set the name, got %v", plan.setName)
	}
}

func TestPlanResolutionMerge(t *testing.T) {
	flag := pendingFlag("100", strPtr("Alice"), 3)
	target := &models.Student{ID: 9, IndexNumber: "900", AssignmentCount: 2}

	plan, err := planResolution(flag, models.ResolutionActionMerge, ResolveOptions{TargetStudentId: 9}, nil, target)
	if err != nil {
		t.Fatal(err)
	}
	if plan.updateStudentId != 9 || plan.countDelta != 3 {
		t.Errorf("merge should add 3 to student 9, got %+v", plan)
	}
	if plan.setName != nil {
		t.Errorf("merge must discard the flagged name")
	}
	if plan.resolution != models.FlagResolutionMerge {
		t.Errorf("expected merge resolution, got %s", plan.resolution)
	}
}

func TestPlanResolutionMergeRequiresTarget(t *testing.T) {
	flag := pendingFlag("100", nil, 1)

	if _, err := planResolution(flag, models.ResolutionActionMerge, ResolveOptions{}, nil, nil); err == nil {
		t.Fatal("merge without a target must fail")
	}
	if _, err := planResolution(flag, models.ResolutionActionMerge, ResolveOptions{TargetStudentId: 9}, nil, nil); err == nil {
		t.Fatal("merge with an unknown target must fail")
	}
}

func TestPlanResolutionInvalidAction(t *testing.T) {
	flag := pendingFlag("100", nil, 1)

	if _, err := planResolution(flag, models.ResolutionAction("discard"), ResolveOptions{}, nil, nil); err == nil {
		t.Fatal("unknown action must fail")
	}
}
