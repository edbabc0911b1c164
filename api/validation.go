package api

import (
	"encoding/json"
	"strings"

	"github.com/jrsteele09/revalytiq-client/httpclient"
	clienterrors "github.com/jrsteele09/revalytiq-client/internal/errors"
	"github.com/jrsteele09/revalytiq-client/internal/utils"
)

// ValidationErrors extracts the human readable messages from a rejected request.
// It understands {detail, errors: {field: [msg]}} as well as plain field maps, and
// returns nil when err carries no backend body.
func ValidationErrors(err error) []string {
	var apiErr *httpclient.APIError
	if !clienterrors.As(err, &apiErr) || len(apiErr.Body) == 0 {
		return nil
	}

	var body map[string]any
	if json.Unmarshal(apiErr.Body, &body) != nil {
		return nil
	}

	if nested, ok := body["errors"]; ok {
		if messages := utils.Messages(nested); len(messages) > 0 {
			return messages
		}
	}

	fields := make(map[string]any, len(body))
	for k, v := range body {
		if k == "detail" || k == "errors" {
			continue
		}
		fields[k] = v
	}
	if messages := utils.Messages(fields); len(messages) > 0 {
		return messages
	}
	return utils.Messages(body["detail"])
}

// JoinValidationErrors joins the messages of err with a space, or returns "".
func JoinValidationErrors(err error) string {
	return strings.Join(ValidationErrors(err), " ")
}
