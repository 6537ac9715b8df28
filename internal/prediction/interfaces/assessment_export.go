package interfaces

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"rockfall-monitor/internal/prediction/domain"
)

// ReportPeriod bounds an assessment report.
type ReportPeriod struct {
	From time.Time
	To   time.Time
}

func levelCounts(records []prediction.AssessmentRecord) map[prediction.RiskLevel]int {
	counts := make(map[prediction.RiskLevel]int, 4)
	for _, record := range records {
		counts[record.Level]++
	}
	return counts
}

var reportLevels = []prediction.RiskLevel{
	prediction.RiskLow,
	prediction.RiskMedium,
	prediction.RiskHigh,
	prediction.RiskCritical,
}

func sensorLabel(record prediction.AssessmentRecord) string {
	if record.SensorID == "" {
		return "all"
	}
	return record.SensorID
}

// BuildAssessmentPDF renders a minimal PDF report of stored assessments.
func BuildAssessmentPDF(period ReportPeriod, records []prediction.AssessmentRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Rockfall Risk Assessment Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("From: %s", period.From.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("To: %s", period.To.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Assessments: %d", len(records)))
	pdf.Ln(5)
	counts := levelCounts(records)
	for _, level := range reportLevels {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %d", level, counts[level]))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(40, 6, "Assessed At", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Sensor", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Level", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Confidence", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Location", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Readings", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, record := range records {
		pdf.CellFormat(40, 6, record.AssessedAt.UTC().Format("2006-01-02 15:04:05"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, 6, sensorLabel(record), "1", 0, "C", false, 0, "")
		pdf.CellFormat(22, 6, record.Level.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(22, 6, fmt.Sprintf("%.2f", record.Confidence), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, record.Location, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", record.ReadingCount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAssessmentXLSX renders a workbook with a summary sheet and one row per assessment.
func BuildAssessmentXLSX(period ReportPeriod, records []prediction.AssessmentRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	itemsSheet := "assessments"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Rockfall Risk Assessment Report")
	_ = f.SetCellValue(summarySheet, "A3", "From")
	_ = f.SetCellValue(summarySheet, "B3", period.From.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "To")
	_ = f.SetCellValue(summarySheet, "B4", period.To.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Assessments")
	_ = f.SetCellValue(summarySheet, "B5", len(records))
	counts := levelCounts(records)
	for i, level := range reportLevels {
		row := 6 + i
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), level.String())
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), counts[level])
	}

	headers := []string{"ID", "Assessed At", "Sensor", "Risk Level", "Confidence", "Location", "Readings", "Contributing Factors"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, header)
	}
	for i, record := range records {
		row := i + 2
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("A%d", row), record.ID)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("B%d", row), record.AssessedAt.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("C%d", row), sensorLabel(record))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("D%d", row), record.Level.String())
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("E%d", row), record.Confidence)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("F%d", row), record.Location)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("G%d", row), record.ReadingCount)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("H%d", row), strings.Join(record.ContributingFactors, ", "))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
