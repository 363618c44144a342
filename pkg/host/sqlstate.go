package host

import "fmt"

// SQLState is a five character SQLSTATE code.
type SQLState string

// Frequently raised conditions.
const (
	SuccessfulCompletion           SQLState = "00000"
	WarningState                   SQLState = "01000"
	FeatureNotSupported            SQLState = "0A000"
	DataException                  SQLState = "22000"
	StringDataRightTruncation      SQLState = "22001"
	NumericValueOutOfRange         SQLState = "22003"
	NullValueNotAllowed            SQLState = "22004"
	DatetimeFieldOverflow          SQLState = "22008"
	DivisionByZero                 SQLState = "22012"
	CharacterNotInRepertoire       SQLState = "22021"
	InvalidParameterValue          SQLState = "22023"
	InvalidTextRepresentation      SQLState = "22P02"
	InvalidBinaryRepresentation    SQLState = "22P03"
	ExternalRoutineException       SQLState = "38000"
	ExternalRoutineInvocation      SQLState = "39000"
	DatatypeMismatch               SQLState = "42804"
	UndefinedFunction              SQLState = "42883"
	UndefinedObject                SQLState = "42704"
	ProgramLimitExceeded           SQLState = "54000"
	TooManyArguments               SQLState = "54023"
	ObjectNotInPrerequisiteState   SQLState = "55000"
	QueryCanceled                  SQLState = "57014"
	OutOfMemory                    SQLState = "53200"
	RaiseException                 SQLState = "P0001"
	InternalError                  SQLState = "XX000"
	DataCorrupted                  SQLState = "XX001"
)

var conditions = map[SQLState]string{
	"00000": "successful_completion",
	"01000": "warning",
	"01003": "null_value_eliminated_in_set_function",
	"01004": "string_data_right_truncation",
	"01P01": "deprecated_feature",
	"02000": "no_data",
	"0A000": "feature_not_supported",
	"20000": "case_not_found",
	"21000": "cardinality_violation",
	"22000": "data_exception",
	"22001": "string_data_right_truncation",
	"22003": "numeric_value_out_of_range",
	"22004": "null_value_not_allowed",
	"22007": "invalid_datetime_format",
	"22008": "datetime_field_overflow",
	"22012": "division_by_zero",
	"22021": "character_not_in_repertoire",
	"22023": "invalid_parameter_value",
	"22025": "invalid_escape_sequence",
	"22P01": "floating_point_exception",
	"22P02": "invalid_text_representation",
	"22P03": "invalid_binary_representation",
	"23000": "integrity_constraint_violation",
	"23502": "not_null_violation",
	"23503": "foreign_key_violation",
	"23505": "unique_violation",
	"23514": "check_violation",
	"24000": "invalid_cursor_state",
	"25000": "invalid_transaction_state",
	"25006": "read_only_sql_transaction",
	"25P02": "in_failed_sql_transaction",
	"38000": "external_routine_exception",
	"38001": "containing_sql_not_permitted",
	"38002": "modifying_sql_data_not_permitted",
	"38003": "prohibited_sql_statement_attempted",
	"38004": "reading_sql_data_not_permitted",
	"39000": "external_routine_invocation_exception",
	"39004": "null_value_not_allowed",
	"40001": "serialization_failure",
	"40P01": "deadlock_detected",
	"42501": "insufficient_privilege",
	"42601": "syntax_error",
	"42703": "undefined_column",
	"42704": "undefined_object",
	"42710": "duplicate_object",
	"42804": "datatype_mismatch",
	"42883": "undefined_function",
	"42P01": "undefined_table",
	"53000": "insufficient_resources",
	"53100": "disk_full",
	"53200": "out_of_memory",
	"53400": "configuration_limit_exceeded",
	"54000": "program_limit_exceeded",
	"54001": "statement_too_complex",
	"54023": "too_many_arguments",
	"55000": "object_not_in_prerequisite_state",
	"55P03": "lock_not_available",
	"57014": "query_canceled",
	"57P01": "admin_shutdown",
	"58030": "io_error",
	"58P01": "undefined_file",
	"P0001": "raise_exception",
	"P0002": "no_data_found",
	"P0003": "too_many_rows",
	"P0004": "assert_failure",
	"XX000": "internal_error",
	"XX001": "data_corrupted",
	"XX002": "index_corrupted",
}

// Names shared by a warning or external-routine code and a data exception
// resolve to the data exception.
var byName = func() map[string]SQLState {
	m := make(map[string]SQLState, len(conditions))
	for code, name := range conditions {
		if prev, ok := m[name]; ok && prev.Class() == "22" {
			continue
		}
		m[name] = code
	}
	return m
}()

// Condition returns the condition name for the code, or the code itself
// when it is not in the table.
func (s SQLState) Condition() string {
	if name, ok := conditions[s]; ok {
		return name
	}
	return string(s)
}

// Class returns the two character class of the code.
func (s SQLState) Class() SQLState {
	if len(s) < 2 {
		return s
	}
	return s[:2]
}

// Valid reports whether s has the SQLSTATE shape: five characters drawn
// from digits and upper-case letters.
func (s SQLState) Valid() bool {
	if len(s) != 5 {
		return false
	}
	for i := 0; i < 5; i++ {
		c := s[i]
		if !(c >= '0' && c <= '9') && !(c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

// Pack encodes the code the way the host stores it in ErrorData.sqlerrcode:
// six bits per character, first character in the low bits.
func (s SQLState) Pack() int32 {
	if !s.Valid() {
		return InternalError.Pack()
	}
	var v int32
	for i := 0; i < 5; i++ {
		v |= int32((s[i]-'0')&0x3F) << (6 * i)
	}
	return v
}

// UnpackSQLState is the inverse of Pack.
func UnpackSQLState(v int32) SQLState {
	var b [5]byte
	for i := 0; i < 5; i++ {
		b[i] = byte((v>>(6*i))&0x3F) + '0'
	}
	return SQLState(b[:])
}

// LookupCondition resolves a condition name such as "division_by_zero".
func LookupCondition(name string) (SQLState, error) {
	if s, ok := byName[name]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unrecognized condition name %q", name)
}
