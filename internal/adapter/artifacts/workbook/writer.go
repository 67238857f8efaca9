// Package workbook renders an analysis result as a spreadsheet study
// document with separate sheets for the summary, insights, and quiz.
package workbook

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/port"
)

const (
	sheetSummary  = "Summary"
	sheetInsights = "Key Insights"
	sheetQuiz     = "Quiz"
)

type Writer struct{}

func NewWriter() port.DocumentWriter {
	return &Writer{}
}

func (w *Writer) WriteWorkbook(result *domain.JobResult, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeSummary(f, result); err != nil {
		return err
	}
	if err := w.writeInsights(f, result.Insights); err != nil {
		return err
	}
	if err := w.writeQuiz(f, result.Quiz); err != nil {
		return err
	}

	// excelize starts every workbook with a default sheet.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (w *Writer) writeSummary(f *excelize.File, result *domain.JobResult) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}
	rows := [][]any{
		{"Video", result.VideoFile},
		{"Language", result.Language},
		{},
		{"Summary", result.Summary},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeInsights(f *excelize.File, insights []string) error {
	if _, err := f.NewSheet(sheetInsights); err != nil {
		return err
	}
	header := []any{"#", "Insight"}
	if err := f.SetSheetRow(sheetInsights, "A1", &header); err != nil {
		return err
	}
	for i, insight := range insights {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{i + 1, insight}
		if err := f.SetSheetRow(sheetInsights, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeQuiz(f *excelize.File, quiz []domain.QuizQuestion) error {
	if _, err := f.NewSheet(sheetQuiz); err != nil {
		return err
	}
	header := []any{"#", "Question", "A", "B", "C", "D", "Correct Answer"}
	if err := f.SetSheetRow(sheetQuiz, "A1", &header); err != nil {
		return err
	}
	for i, q := range quiz {
		row := []any{i + 1, q.Question}
		for _, label := range sortedLabels(q.Options) {
			row = append(row, q.Options[label])
		}
		row = append(row, q.CorrectAnswer)

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetQuiz, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func sortedLabels(options map[string]string) []string {
	labels := make([]string, 0, len(options))
	for label := range options {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

var _ port.DocumentWriter = (*Writer)(nil)
