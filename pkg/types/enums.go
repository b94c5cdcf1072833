package types

// ErrorKind classifies an error record produced while processing a file.
type ErrorKind string

// ErrorKind values enumerate every error record the pipeline emits.
const (
	ErrMissingYear        ErrorKind = "MissingYear"
	ErrOldYear            ErrorKind = "OldYear"
	ErrEncoding           ErrorKind = "EncodingError"
	ErrUnidentifiedTable  ErrorKind = "UnidentifiedTable"
	ErrBlankHeaders       ErrorKind = "BlankHeaders"
	ErrBlank              ErrorKind = "Blank"
	ErrConversion         ErrorKind = "ConversionError"
	ErrUncategorisedValue ErrorKind = "UncategorisedValue"
	ErrInvalidRegex       ErrorKind = "InvalidRegex"
	ErrMissingField       ErrorKind = "MissingField"
	ErrUnexpectedNode     ErrorKind = "UnexpectedNode"
	ErrBadValue           ErrorKind = "BadValue"
	ErrOutOfRange         ErrorKind = "OutOfRange"
	ErrPatternMismatch    ErrorKind = "PatternMismatch"
	ErrOther              ErrorKind = "Other"
	ErrStream             ErrorKind = "StreamError"
	ErrTransform          ErrorKind = "TransformError"
	ErrRollupProtected    ErrorKind = "RollupProtected"
	ErrNoSchemaForYear    ErrorKind = "NoSchemaForYear"
	ErrInvalidSchemaDiff  ErrorKind = "InvalidSchemaDiff"
	ErrMissingAuthority   ErrorKind = "MissingAuthority"
)

// ColumnType is the primary type declared by a schema column.
type ColumnType string

// ColumnType values enumerate the supported cell types.
const (
	TypeString   ColumnType = "string"
	TypePostcode ColumnType = "postcode"
	TypeRegex    ColumnType = "regex"
	TypeInteger  ColumnType = "integer"
	TypeFloat    ColumnType = "float"
	TypeDate     ColumnType = "date"
	TypeCategory ColumnType = "category"
)

// Numeric reports whether the type holds numbers.
func (t ColumnType) Numeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// CombineMode controls when deduplication runs while folding snapshots together.
type CombineMode string

const (
	CombineEager     CombineMode = "E" // deduplicate after each snapshot
	CombineAggregate CombineMode = "A" // deduplicate once at the end
	CombineNone      CombineMode = "N" // concatenate only
)

// FileStage tracks how far a single incoming file has progressed in a session.
type FileStage string

// FileStage values represent the per-file processing states.
const (
	StageIncoming FileStage = "INCOMING"
	StageCleaned  FileStage = "CLEANED"
	StageEnriched FileStage = "ENRICHED"
	StageDegraded FileStage = "DEGRADED"
	StageArchived FileStage = "ARCHIVED"
	StageFailed   FileStage = "FAILED"
)
