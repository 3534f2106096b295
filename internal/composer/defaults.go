package composer

import (
	"encoding/json"
	"maps"

	"github.com/user/agentinbox/internal/types"
)

// DefaultResponses builds one editable response per allowed action of hi,
// in the order edit, response, ignore, accept, and picks the default
// submit type: accept, then response, then edit.
func DefaultResponses(hi types.HumanInterrupt) ([]types.HumanResponseWithEdits, types.ResponseType) {
	cfg := hi.Config
	var responses []types.HumanResponseWithEdits

	if cfg.AllowEdit {
		responses = append(responses, types.HumanResponseWithEdits{
			HumanResponse: types.HumanResponse{
				Type: types.ResponseEdit,
				Args: types.ActionRequest{
					Action: hi.ActionRequest.Action,
					Args:   editableArgs(hi.ActionRequest.Args),
				},
			},
			AcceptAllowed: cfg.AllowAccept,
		})
	}
	if cfg.AllowRespond {
		responses = append(responses, types.HumanResponseWithEdits{
			HumanResponse: types.HumanResponse{Type: types.ResponseResponse, Args: ""},
		})
	}
	if cfg.AllowIgnore {
		responses = append(responses, types.HumanResponseWithEdits{
			HumanResponse: types.HumanResponse{Type: types.ResponseIgnore},
		})
	}
	if cfg.AllowAccept {
		responses = append(responses, types.HumanResponseWithEdits{
			HumanResponse: types.HumanResponse{
				Type: types.ResponseAccept,
				Args: types.ActionRequest{
					Action: hi.ActionRequest.Action,
					Args:   maps.Clone(hi.ActionRequest.Args),
				},
			},
		})
	}

	var submitType types.ResponseType
	switch {
	case cfg.AllowAccept:
		submitType = types.ResponseAccept
	case cfg.AllowRespond:
		submitType = types.ResponseResponse
	case cfg.AllowEdit:
		submitType = types.ResponseEdit
	}
	return responses, submitType
}

// editableArgs renders every argument as a string for editing. Strings are
// kept as-is; other values are JSON encoded.
func editableArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = argString(v)
	}
	return out
}

func argString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// decodeArgs converts edited strings back to the type of the original
// value when the edit is valid JSON of a non-string value.
func decodeArgs(edited, original map[string]any) map[string]any {
	out := make(map[string]any, len(edited))
	for k, v := range edited {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		if orig, had := original[k]; had {
			if _, wasString := orig.(string); !wasString {
				var decoded any
				if err := json.Unmarshal([]byte(s), &decoded); err == nil {
					out[k] = decoded
					continue
				}
			}
		}
		out[k] = s
	}
	return out
}

// buildInput flattens the responses into what would be sent for each
// type: an unedited accept-allowed edit collapses to accept and an empty
// response is dropped.
func buildInput(responses []types.HumanResponseWithEdits, original map[string]any) []types.HumanResponse {
	var out []types.HumanResponse
	for _, r := range responses {
		switch r.Type {
		case types.ResponseEdit:
			ar, _ := r.Args.(types.ActionRequest)
			if r.AcceptAllowed && !r.EditsMade {
				out = append(out, types.HumanResponse{
					Type: types.ResponseAccept,
					Args: types.ActionRequest{Action: ar.Action, Args: maps.Clone(original)},
				})
				continue
			}
			out = append(out, types.HumanResponse{
				Type: types.ResponseEdit,
				Args: types.ActionRequest{Action: ar.Action, Args: decodeArgs(ar.Args, original)},
			})
		case types.ResponseResponse:
			if s, _ := r.Args.(string); s == "" {
				continue
			}
			out = append(out, r.HumanResponse)
		default:
			out = append(out, r.HumanResponse)
		}
	}
	return out
}
