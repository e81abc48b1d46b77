// Package dataprocessing turns order export files into line records and
// classified line records into promo summaries.
//
// # Architecture
//
// The package has two halves around the classification engine in internal/promo:
//
// 1. Parser: reads an xlsx or csv export and maps its header names onto
// domain fields through a ColumnMap
// 2. Aggregator: groups classified rows by promo type into the Promo Analysis
// summary and the Multibuy-collapsed distribution
//
// # Usage
//
//	parser := dataprocessing.NewParser(logger, dataprocessing.ParserConfig{})
//	table, err := parser.ParseFile(ctx, "orders.xlsx")
//	if err != nil {
//	    return err
//	}
//
//	classified, err := engine.Classify(ctx, table, enabled)
//	...
//
//	agg := dataprocessing.NewAggregator(logger, dataprocessing.AggregatorConfig{})
//	summary := agg.Summarize(ctx, classified.Records)
//	distribution := agg.Distribution(ctx, classified.Records)
//
// Numeric cells are parsed leniently: currency symbols and thousands separators
// are stripped, and anything that still fails to parse is kept as a null value
// rather than rejected.
package dataprocessing
