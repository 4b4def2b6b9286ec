package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// IssuesSheet is the name of the only sheet in the export.
const IssuesSheet = "Issues"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04"

var issueHeaders = []interface{}{
	"ID", "Title", "Category", "Area", "Address", "Status", "Citizen ID",
	"Department ID", "Officer ID", "Created At", "SLA Deadline", "SLA Breached", "Escalation Level",
}

// IssuesWorkbook renders issues as an xlsx file, one row per issue after a bold header.
func IssuesWorkbook(issues []domain.Issue) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", IssuesSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(IssuesSheet, "A1", &issueHeaders); err != nil {
		return nil, err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(issueHeaders), 1)
	if err := f.SetCellStyle(IssuesSheet, "A1", lastHeader, style); err != nil {
		return nil, err
	}

	for i, issue := range issues {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := issueRow(issue)
		if err := f.SetSheetRow(IssuesSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row for issue %d: %w", issue.ID, err)
		}
	}
	_ = f.SetColWidth(IssuesSheet, "B", "B", 40)
	_ = f.SetColWidth(IssuesSheet, "C", "E", 24)
	_ = f.SetColWidth(IssuesSheet, "J", "K", 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func issueRow(issue domain.Issue) []interface{} {
	return []interface{}{
		issue.ID,
		issue.Title,
		issue.Category,
		issue.Area,
		issue.Address,
		string(issue.Status),
		issue.CitizenID,
		optionalID(issue.DepartmentID),
		optionalID(issue.OfficerID),
		issue.CreatedAt.UTC().Format(timeLayout),
		issue.SLADeadline.UTC().Format(timeLayout),
		strconv.FormatBool(issue.SLABreached),
		issue.EscalationLevel,
	}
}

func optionalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}
