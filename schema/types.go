package schema

import (
	"fmt"
	"regexp"
	"strings"
)

const defaultVarcharLength = "255"

var fieldTypePattern = regexp.MustCompile(`^([A-Za-z]+)(?:\(\s*([0-9]+(?:\s*,\s*[0-9]+)?)\s*\))?$`)

// BaseType returns the storage type name without its arguments, "Varchar(200)" gives "Varchar".
func BaseType(fieldType string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(fieldType), "(")
	return strings.TrimSpace(name)
}

// ColumnType maps a declared storage type to a PostgreSQL column definition.
func ColumnType(fieldType string) (string, error) {
	matches := fieldTypePattern.FindStringSubmatch(strings.TrimSpace(fieldType))
	if matches == nil {
		return "", fmt.Errorf("malformed field type %q", fieldType)
	}

	name, args := matches[1], strings.ReplaceAll(matches[2], " ", "")

	switch strings.ToLower(name) {
	case "varchar", "htmlvarchar":
		if args == "" {
			args = defaultVarcharLength
		}
		if strings.Contains(args, ",") {
			return "", fmt.Errorf("field type %q takes a single length", fieldType)
		}
		return "varchar(" + args + ")", nil
	case "text", "htmltext":
		return noArgs(fieldType, args, "text")
	case "int":
		return noArgs(fieldType, args, "integer")
	case "bigint":
		return noArgs(fieldType, args, "bigint")
	case "boolean":
		return noArgs(fieldType, args, "boolean")
	case "decimal":
		if args == "" {
			args = "9,2"
		}
		return "numeric(" + args + ")", nil
	case "date":
		return noArgs(fieldType, args, "date")
	case "datetime":
		return noArgs(fieldType, args, "timestamptz")
	default:
		return "", fmt.Errorf("unknown field type %q", fieldType)
	}
}

func noArgs(fieldType, args, column string) (string, error) {
	if args != "" {
		return "", fmt.Errorf("field type %q takes no arguments", fieldType)
	}
	return column, nil
}
