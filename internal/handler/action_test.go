package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Action
	}{
		{"buy", "buy:abc-123", Action{Kind: ActionBuy, Arg: "abc-123"}},
		{"payment method", "paymethod:def-456", Action{Kind: ActionPayMethod, Arg: "def-456"}},
		{"confirm", "payconfirm", Action{Kind: ActionPayConfirm}},
		{"cancel", "paycancel", Action{Kind: ActionPayCancel}},
		{"admin approve", "pay_ok:req-1", Action{Kind: ActionApprove, Arg: "req-1"}},
		{"admin reject", "pay_reject:req-1", Action{Kind: ActionReject, Arg: "req-1"}},
		{"unknown keeps raw data", "sub_ok:req-1", Action{Kind: ActionUnknown, Arg: "sub_ok:req-1"}},
		{"empty", "", Action{Kind: ActionUnknown, Arg: ""}},
		{"argument with colon", "buy:a:b", Action{Kind: ActionBuy, Arg: "a:b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAction(tt.data))
		})
	}
}
