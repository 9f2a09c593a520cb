package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/easytask_backend/models"
	"github.com/mmdatafocus/easytask_backend/utils"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheetMain    = "Main Records"
	exportSheetFlagged = "Flagged Records"
)

// BuildExportFile renders the full dataset as a workbook: students on one
// sheet, flagged history (resolved included) on another.
func BuildExportFile(ctx context.Context) (*excelize.File, error) {

	students, err := models.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	flagged, err := models.ListAllFlags(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)
	if _, err := f.NewSheet(exportSheetMain); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(exportSheetFlagged); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet(defaultSheet); err != nil {
		return nil, err
	}

	// Add headers
	f.SetCellValue(exportSheetMain, "A1", "Index Number")
	f.SetCellValue(exportSheetMain, "B1", "Student Name")
	f.SetCellValue(exportSheetMain, "C1", "Assignment Count")

	// Add data
	for i, s := range students {
		f.SetCellValue(exportSheetMain, "A"+fmt.Sprint(i+2), s.IndexNumber)
		f.SetCellValue(exportSheetMain, "B"+fmt.Sprint(i+2), utils.DereferencePtr(s.Name, ""))
		f.SetCellValue(exportSheetMain, "C"+fmt.Sprint(i+2), s.AssignmentCount)
	}

	f.SetCellValue(exportSheetFlagged, "A1", "Index Number")
	f.SetCellValue(exportSheetFlagged, "B1", "Student Name")
	f.SetCellValue(exportSheetFlagged, "C1", "Issue Type")
	f.SetCellValue(exportSheetFlagged, "D1", "Source")
	f.SetCellValue(exportSheetFlagged, "E1", "Resolved")
	f.SetCellValue(exportSheetFlagged, "F1", "Assignment Count")

	for i, fr := range flagged {
		resolved := "No"
		if fr.Resolved {
			resolved = "Yes"
		}
		f.SetCellValue(exportSheetFlagged, "A"+fmt.Sprint(i+2), fr.IndexNumber)
		f.SetCellValue(exportSheetFlagged, "B"+fmt.Sprint(i+2), utils.DereferencePtr(fr.Name, ""))
		f.SetCellValue(exportSheetFlagged, "C"+fmt.Sprint(i+2), string(fr.IssueType))
		f.SetCellValue(exportSheetFlagged, "D"+fmt.Sprint(i+2), string(fr.Source))
		f.SetCellValue(exportSheetFlagged, "E"+fmt.Sprint(i+2), resolved)
		f.SetCellValue(exportSheetFlagged, "F"+fmt.Sprint(i+2), fr.AssignmentCount)
	}

	return f, nil
}
