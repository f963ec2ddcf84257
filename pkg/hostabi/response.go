package hostabi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// quote wraps s in double quotes, doubling embedded quotes the way the host's
// array parser expects.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// formatDispatchResponse renders a handler result as a host array:
// ["ok"], ["ok", value] or ["error", message]. Strings are quoted as is,
// everything else is encoded as JSON.
func formatDispatchResponse(result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", %s]`, quote(err.Error()))
	}
	switch v := result.(type) {
	case nil:
		return `["ok"]`
	case string:
		return fmt.Sprintf(`["ok", %s]`, quote(v))
	}
	data, jerr := json.Marshal(result)
	if jerr != nil {
		return fmt.Sprintf(`["error", %s]`, quote(jerr.Error()))
	}
	return fmt.Sprintf(`["ok", %s]`, data)
}

// splitCommand separates "COMMAND|arg1|arg2" into the command and its args.
func splitCommand(input string) (string, []string) {
	parts := strings.Split(input, "|")
	return parts[0], parts[1:]
}
