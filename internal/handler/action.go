package handler

import "strings"

// ActionKind enumerates every inline-keyboard action the bot emits.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionBuy                // buy:<product id>
	ActionPayMethod          // paymethod:<setting id>
	ActionPayConfirm         // payconfirm
	ActionPayCancel          // paycancel
	ActionApprove            // pay_ok:<request id>, admin only
	ActionReject             // pay_reject:<request id>, admin only
)

// Action is a callback token decoded once at the boundary, so handlers never
// re-split the raw "action:argument" string.
type Action struct {
	Kind ActionKind
	Arg  string
}

var actionKinds = map[string]ActionKind{
	"buy":        ActionBuy,
	"paymethod":  ActionPayMethod,
	"payconfirm": ActionPayConfirm,
	"paycancel":  ActionPayCancel,
	"pay_ok":     ActionApprove,
	"pay_reject": ActionReject,
}

// ParseAction decodes callback data. Unrecognized data yields ActionUnknown.
func ParseAction(data string) Action {
	name, arg, _ := strings.Cut(data, ":")
	kind, ok := actionKinds[name]
	if !ok {
		return Action{Kind: ActionUnknown, Arg: data}
	}
	return Action{Kind: kind, Arg: arg}
}
