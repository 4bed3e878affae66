package core

// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Codes are grouped by category.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the configured size limit
//	          Patterns: "file too large"
//
//	FILE002 - File not found: The dataset file does not exist
//	          Patterns: "file not found"
//
//	FILE003 - Encoding error: File is neither UTF-8 nor Windows-1251
//	          Patterns: "encoding error"
//
//	FILE004 - Directory: Path points to a directory
//	          Patterns: "path is a directory"
//
//	FILE005 - Invalid CSV: File could not be parsed as CSV
//	          Patterns: "invalid csv"
//
//	FILE006 - Wrong type: Only .csv files are accepted
//	          Patterns: "not a csv file"
//
// # Analysis Errors (ANA001-ANA099)
//
//	ANA001 - Empty file: File has no header row
//	         Patterns: "no header row", "table has no columns"
//
//	ANA002 - System busy: Too many analyses running
//	         Patterns: "too many analyses"
//
// # Dataset Errors (DS001-DS099)
//
//	DS001 - Dataset not found    Patterns: "dataset not found"
//	DS002 - Analysis running     Patterns: "analysis already in progress"
//	DS003 - Report not found     Patterns: "report not found"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused   Patterns: "connection refused"
//	DB002 - Connection reset     Patterns: "connection reset"
//	DB003 - Timeout              Patterns: "timeout", "deadline exceeded"
//	DB004 - Foreign key          Patterns: "foreign key constraint", "violates foreign key"
//	DB005 - Unique constraint    Patterns: "duplicate key", "unique constraint"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns precede general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is ordered: specific patterns before general ones.
var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks or raise ANALYSIS_MAX_FILE_SIZE",
			Code:    "FILE001",
		},
	},
	{
		pattern: "file not found",
		msg: UserMessage{
			Message: "The dataset file could not be found",
			Action:  "Check that the file still exists in the data directory",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8",
			Code:    "FILE003",
		},
	},
	{
		pattern: "path is a directory",
		msg: UserMessage{
			Message: "The path points to a directory",
			Action:  "Provide the path of a CSV file",
			Code:    "FILE004",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with no row longer than the header",
			Code:    "FILE005",
		},
	},
	{
		pattern: "not a csv file",
		msg: UserMessage{
			Message: "Only CSV files are accepted",
			Action:  "Select a file with the .csv extension",
			Code:    "FILE006",
		},
	},

	// Analysis errors
	{
		pattern: "no header row",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Upload a CSV file with a header row",
			Code:    "ANA001",
		},
	},
	{
		pattern: "table has no columns",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Upload a CSV file with a header row",
			Code:    "ANA001",
		},
	},
	{
		pattern: "too many analyses",
		msg: UserMessage{
			Message: "System is busy processing other analyses",
			Action:  "Please wait a moment and try again",
			Code:    "ANA002",
		},
	},

	// Dataset errors
	{
		pattern: "dataset not found",
		msg: UserMessage{
			Message: "Dataset not found",
			Action:  "Run the datasets command to list known datasets",
			Code:    "DS001",
		},
	},
	{
		pattern: "analysis already in progress",
		msg: UserMessage{
			Message: "This dataset is already being analyzed",
			Action:  "Wait for the running analysis to finish",
			Code:    "DS002",
		},
	},
	{
		pattern: "report not found",
		msg: UserMessage{
			Message: "No report exists for this dataset yet",
			Action:  "Analyze the dataset first",
			Code:    "DS003",
		},
	},

	// Database errors
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB003",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced dataset does not exist",
			Action:  "Register the dataset before analyzing it",
			Code:    "DB004",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced dataset does not exist",
			Action:  "Register the dataset before analyzing it",
			Code:    "DB004",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or the ERR000 fallback.
//
// Example:
//
//	msg := MapError(errors.New("invalid csv: line 3: expected 2 fields, saw 3"))
//	// msg.Code == "FILE005"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func formatMessage(msg UserMessage) string {
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps a technical error to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

// Mapped reports whether the technical error matched a known pattern.
func (e *UserError) Mapped() bool {
	return e.User.Code != defaultMessage.Code
}

// Display returns the formatted user message, or the technical error text
// when no pattern matched.
func (e *UserError) Display() string {
	if !e.Mapped() {
		return e.Technical.Error()
	}
	return formatMessage(e.User)
}
