package core

// # Error Codes Reference
//
// User-facing messages with codes for support reference. Codes are grouped
// by category:
//
// # Run Errors
//
//	GRAPH001 - Schema inconsistency: foreign key cycles cannot be ordered
//	           Action: Resolve the compound cycle manually or select fewer tables
//	           Kind: graph.ErrSchemaInconsistency
//
//	RUN001   - Cancelled: the run was interrupted
//	           Action: Run the command again
//	           Patterns: "context canceled"
//
// # Table Errors
//
//	KEY001   - Missing identity key: table has no primary key or unique constraint
//	           Action: Add a unique constraint or configure alternate_key
//	           Kind: ErrMissingIdentityKey
//
//	FILE001  - Missing snapshot: no <table>.csv in the input directory
//	           Action: Export the table or remove it from the selection
//	           Kind: ErrMissingSnapshot
//
//	SHAPE001 - Shape mismatch: snapshot header does not match the columns
//	           Action: Re-export the table or fix the columns setting
//	           Kind: ErrShapeMismatch
//
//	XFER001  - Transfer failure: copying or applying the snapshot failed
//	           Action: Check the file for malformed rows; the table was rolled back
//	           Kind: ErrTransfer (after database patterns)
//
// # Database Errors (DB001-DB006)
//
//	DB001 - Duplicate key            Patterns: "duplicate key"
//	DB002 - Unique constraint        Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key              Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused       Patterns: "connection refused"
//	DB005 - Connection reset         Patterns: "connection reset"
//	DB006 - Timeout                  Patterns: "timeout", "context deadline exceeded"
//
// # Configuration (CFG001)
//
//	CFG001 - Invalid configuration   Patterns: "validation failed", "invalid table config",
//	                                           "table not found in schema"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the log for the original error.
//
// # Matching
//
// Kinds are matched with errors.Is before patterns; patterns are matched
// case-insensitively with strings.Contains and the first match wins. A
// transfer failure caused by a constraint violation reports the constraint
// code rather than XFER001.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/pgmerge/internal/graph"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorKind maps a sentinel error to its user message.
type errorKind struct {
	kind error
	msg  UserMessage
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgSchemaInconsistency = UserMessage{
		Message: "Foreign key cycles cannot be ordered",
		Action:  "Resolve the compound cycle manually or select fewer tables",
		Code:    "GRAPH001",
	}
	msgMissingIdentityKey = UserMessage{
		Message: "Table has no primary key or unique constraint",
		Action:  "Add a unique constraint or configure alternate_key for the table",
		Code:    "KEY001",
	}
	msgMissingSnapshot = UserMessage{
		Message: "No snapshot file for table",
		Action:  "Export the table or leave it out of the table list",
		Code:    "FILE001",
	}
	msgShapeMismatch = UserMessage{
		Message: "Snapshot columns do not match the table",
		Action:  "Re-export the table or fix its columns setting",
		Code:    "SHAPE001",
	}
	msgTransfer = UserMessage{
		Message: "Snapshot could not be loaded",
		Action:  "Check the file for malformed rows; the table was rolled back",
		Code:    "XFER001",
	}
)

// errorKinds are checked first, in order.
var errorKinds = []errorKind{
	{graph.ErrSchemaInconsistency, msgSchemaInconsistency},
	{ErrMissingIdentityKey, msgMissingIdentityKey},
	{ErrMissingSnapshot, msgMissingSnapshot},
	{ErrShapeMismatch, msgShapeMismatch},
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// Constraint errors, as worded by PostgreSQL and SQLite
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A row with this key already exists",
			Action:  "Check the snapshot for repeated identity key values",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check the snapshot for duplicate entries",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review the snapshot for duplicate key values",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced row does not exist",
			Action:  "Include the referenced tables (--include-dependent-tables)",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced row does not exist",
			Action:  "Include the referenced tables (--include-dependent-tables)",
			Code:    "DB003",
		},
	},

	// Connection errors
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Check the host, port and that the server is running",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Raise PGMERGE_TABLE_TIMEOUT or merge fewer rows at a time",
			Code:    "DB006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Raise PGMERGE_TABLE_TIMEOUT or merge fewer rows at a time",
			Code:    "DB006",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Run was cancelled",
			Action:  "Run the command again",
			Code:    "RUN001",
		},
	},

	// Configuration
	{
		pattern: "validation failed",
		msg: UserMessage{
			Message: "Invalid configuration",
			Action:  "Fix the listed environment settings",
			Code:    "CFG001",
		},
	},
	{
		pattern: "invalid table config",
		msg: UserMessage{
			Message: "Invalid table configuration",
			Action:  "Fix the listed tables and columns in the config file",
			Code:    "CFG001",
		},
	},
	{
		pattern: "table not found in schema",
		msg: UserMessage{
			Message: "Table not found",
			Action:  "Verify the table names and --schema",
			Code:    "CFG001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log output for details",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It checks the error kinds first, then the known patterns
// (case-insensitive). If nothing matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := &TableError{Table: "t", Kind: ErrMissingIdentityKey}
//	msg := MapError(err)
//	// msg.Code == "KEY001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, ek := range errorKinds {
		if errors.Is(err, ek.kind) {
			return ek.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if errors.Is(err, ErrTransfer) {
		return msgTransfer
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
