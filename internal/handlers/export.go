package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteSpreadsheet streams a single-sheet workbook as an attachment named
// <prefix>_<date>.xlsx.
func (h *Handler) WriteSpreadsheet(w http.ResponseWriter, prefix, sheet string, headers []string, rows [][]any) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		h.Logger.Error("failed to create export sheet", "sheet", sheet, "error", err)
		http.Error(w, "Failed to build export", http.StatusInternalServerError)
		return
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		h.Logger.Error("failed to write export header", "sheet", sheet, "error", err)
		http.Error(w, "Failed to build export", http.StatusInternalServerError)
		return
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			h.Logger.Error("failed to write export row", "sheet", sheet, "row", i+2, "error", err)
			http.Error(w, "Failed to build export", http.StatusInternalServerError)
			return
		}
	}
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	filename := fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format("20060102"))
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Type", xlsxContentType)
	if err := f.Write(w); err != nil {
		h.Logger.Error("failed to stream export", "sheet", sheet, "error", err)
	}
}
