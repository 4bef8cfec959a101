package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/outreachlab/telegram-mailer-backend/internal/database/repository"
	"github.com/outreachlab/telegram-mailer-backend/internal/models"
)

// Service handles Excel exports of campaign results
type Service struct {
	campaignRepo *repository.CampaignRepository
	templateRepo *repository.TemplateRepository
	historyRepo  *repository.SendingHistoryRepository
	exportsDir   string
}

// NewExcelService creates a new Excel service instance
func NewExcelService(
	campaignRepo *repository.CampaignRepository,
	templateRepo *repository.TemplateRepository,
	historyRepo *repository.SendingHistoryRepository,
	exportsDir string) *Service {
	if _, err := os.Stat(exportsDir); os.IsNotExist(err) {
		os.MkdirAll(exportsDir, 0755)
	}

	return &Service{
		campaignRepo: campaignRepo,
		templateRepo: templateRepo,
		historyRepo:  historyRepo,
		exportsDir:   exportsDir,
	}
}

// ExportResult contains the result of an export operation
type ExportResult struct {
	Success  bool
	Message  string
	Filename string
	FilePath string
}

// ExportCampaignToExcel exports one campaign's per-recipient delivery history
// to an Excel file with a summary sheet
func (s *Service) ExportCampaignToExcel(campaignID uint) (*ExportResult, error) {
	campaign, err := s.campaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	var templateName string
	if template, terr := s.templateRepo.GetByID(campaign.TemplateID); terr == nil {
		templateName = template.Name
	}

	entries, err := s.historyRepo.GetByCampaign(campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sending history: %w", err)
	}

	timestamp := time.Now().Unix()
	filename := fmt.Sprintf("campaign_%s_%d.xlsx", campaign.Code, timestamp)
	filePath := filepath.Join(s.exportsDir, filename)

	f := excelize.NewFile()

	successStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"C6EFCE"}, // Light green
			Pattern: 1,
		},
	})

	failedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"FFC7CE"}, // Light red
			Pattern: 1,
		},
	})

	duplicateStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"D9D9D9"}, // Gray
			Pattern: 1,
		},
	})

	// History sheet
	historySheet := "History"
	defaultSheetName := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheetName, historySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	f.SetActiveSheet(0)

	columns := []string{
		"recipient", "normalized", "result", "error_type", "error_details",
		"message_id", "sent_at",
	}

	for i, col := range columns {
		cell := fmt.Sprintf("%s1", columnToLetter(i+1))
		f.SetCellValue(historySheet, cell, col)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"FFFF00"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err == nil {
		f.SetCellStyle(historySheet, "A1", columnToLetter(len(columns))+"1", headerStyle)
	}

	for i, col := range columns {
		colLetter := columnToLetter(i + 1)
		width := 20.0

		switch col {
		case "recipient", "normalized":
			width = 25.0
		case "error_details":
			width = 50.0
		case "result", "error_type":
			width = 15.0
		}

		f.SetColWidth(historySheet, colLetter, colLetter, width)
	}

	if len(entries) > 0 {
		for j, entry := range entries {
			rowNum := j + 2

			result := "sent"
			if !entry.Success {
				result = "failed"
				if entry.ErrorType == models.ErrorTypeDuplicate {
					result = "duplicate"
				}
			}

			var messageID string
			if entry.TelegramMessageID != nil {
				messageID = fmt.Sprintf("%d", *entry.TelegramMessageID)
			}

			f.SetCellValue(historySheet, fmt.Sprintf("A%d", rowNum), entry.RecipientIdentifier)
			f.SetCellValue(historySheet, fmt.Sprintf("B%d", rowNum), entry.NormalizedIdentifier)
			f.SetCellValue(historySheet, fmt.Sprintf("C%d", rowNum), result)
			f.SetCellValue(historySheet, fmt.Sprintf("D%d", rowNum), entry.ErrorType)
			f.SetCellValue(historySheet, fmt.Sprintf("E%d", rowNum), entry.ErrorDetails)
			f.SetCellValue(historySheet, fmt.Sprintf("F%d", rowNum), messageID)
			f.SetCellValue(historySheet, fmt.Sprintf("G%d", rowNum), entry.SentAt.Format(time.RFC3339))

			lastCell := fmt.Sprintf("%s%d", columnToLetter(len(columns)), rowNum)
			switch result {
			case "sent":
				f.SetCellStyle(historySheet, fmt.Sprintf("A%d", rowNum), lastCell, successStyle)
			case "failed":
				f.SetCellStyle(historySheet, fmt.Sprintf("A%d", rowNum), lastCell, failedStyle)
			case "duplicate":
				f.SetCellStyle(historySheet, fmt.Sprintf("A%d", rowNum), lastCell, duplicateStyle)
			}
		}
	} else {
		f.SetCellValue(historySheet, "A2", "no sending history for this campaign")
	}

	// Summary sheet
	summarySheet := "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summaryRows := [][2]interface{}{
		{"campaign", campaign.Code},
		{"template", templateName},
		{"status", campaign.Status},
		{"total_recipients", campaign.TotalRecipients},
		{"sent_successfully", campaign.SentSuccessfully},
		{"sent_failed", campaign.SentFailed},
		{"duplicates_skipped", campaign.DuplicatesCount},
		{"delay_seconds", campaign.DelaySeconds},
	}
	if campaign.StartedAt != nil {
		summaryRows = append(summaryRows, [2]interface{}{"started_at", campaign.StartedAt.Format(time.RFC3339)})
	}
	if campaign.CompletedAt != nil {
		summaryRows = append(summaryRows, [2]interface{}{"completed_at", campaign.CompletedAt.Format(time.RFC3339)})
	}

	for i, row := range summaryRows {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1])
	}
	f.SetColWidth(summarySheet, "A", "A", 22.0)
	f.SetColWidth(summarySheet, "B", "B", 30.0)

	if err := f.SaveAs(filePath); err != nil {
		return nil, fmt.Errorf("failed to save excel file: %w", err)
	}

	return &ExportResult{
		Success:  true,
		Message:  fmt.Sprintf("exported %d history rows", len(entries)),
		Filename: filename,
		FilePath: filePath,
	}, nil
}

// columnToLetter converts a 1-based column index to its Excel letter
func columnToLetter(col int) string {
	letter := ""
	for col > 0 {
		col--
		letter = string(rune('A'+col%26)) + letter
		col /= 26
	}
	return letter
}
