// Package exporter writes classified order exports and promo summaries.
//
// CSVWriter is the csv side: summary files and streamed classified tables,
// written with a UTF-8 BOM so spreadsheet tools detect the encoding.
//
// WorkbookWriter produces the xlsx report with three sheets:
//
//	Sheet1              Promo Type, Tier Group, then the source columns
//	Promo Analysis      Promo Type, Sales $, Quantity and a closing Total row
//	Promo Distribution  the Multibuy-collapsed view with share percentages
//
// Example usage:
//
//	w := exporter.NewWorkbookWriter(logger)
//	err := w.WriteFile(ctx, "analysed.xlsx", exporter.Report{
//		Table:        classified,
//		Summary:      summary,
//		Distribution: distribution,
//	})
package exporter
