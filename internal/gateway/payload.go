package gateway

import (
	"fmt"
	"strings"
)

// Control payloads travel through platform callback data as
// "action:conversation:scope:product". The product field comes last and
// may contain separators; the other three never do (actions are fixed
// words, conversation and scope ids are platform identifiers).
const payloadSep = ":"

// Menu selections reuse the same shape with the "pick" action.
const ActionPick = "pick"

// EncodePayload packs a control binding into callback data.
func EncodePayload(action, conversation, scope, product string) string {
	return strings.Join([]string{action, conversation, scope, product}, payloadSep)
}

// DecodePayload unpacks callback data produced by EncodePayload.
func DecodePayload(data string) (action, conversation, scope, product string, err error) {
	parts := strings.SplitN(data, payloadSep, 4)
	if len(parts) != 4 || parts[0] == "" {
		return "", "", "", "", fmt.Errorf("gateway: malformed payload %q", data)
	}
	return parts[0], parts[1], parts[2], parts[3], nil
}
