package signup

import (
	"github.com/cruxstack/email-mx-validator-go/internal/validator"
)

const PolicyQuery = "data.email_mx_validator_signup_policy.result"

const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

type PolicyInput struct {
	Trigger        string            `json:"trigger"`
	UserAttributes map[string]string `json:"userAttributes"`
	ClientMetadata map[string]string `json:"clientMetadata"`
	Validation     *validator.Result `json:"validation"`
}

type PolicyOutput struct {
	Action          string `json:"action"`
	Reason          string `json:"reason,omitempty"`
	AutoConfirmUser bool   `json:"autoConfirmUser,omitempty"`
	AutoVerifyEmail bool   `json:"autoVerifyEmail,omitempty"`
}
