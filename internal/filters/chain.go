package filters

import (
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
)

// Tabular returns the standard filter chain for sheet and delimited inputs.
func Tabular(filename string, ds *schema.DataSchema) []events.Filter {
	return []events.Filter{
		AddFilename(filename),
		StripText(),
		AddTableName(ds),
		InheritProperty(false, PropTableName, PropTableSpec),
		ConvertHeaderToMatch(),
		MatchConfigToCell(),
		LogBlanks(),
		ConformCellTypes(false),
		CollectCellValuesForRow(),
	}
}

// Hierarchical returns the standard filter chain for markup inputs. The
// subtrees named by tags are collected and fanned out into rows by mapper.
func Hierarchical(filename string, ds *schema.DataSchema, st *schema.Structure, mapper RecordMapper, tags ...string) []events.Filter {
	return []events.Filter{
		AddFilename(filename),
		StripText(),
		AddContext(),
		AddSchema(st),
		ValidateElements(),
		LogBlanks(),
		ConformCellTypes(false),
		MessageCollector(tags...),
		ExportTable(ds, mapper),
	}
}
