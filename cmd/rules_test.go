package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/leadtrust/internal/model"
)

func TestParseRulesYAML(t *testing.T) {
	rules, err := parseRulesYAML([]byte(`
rules:
  - code: missing_email
    delta: -25
    active: true
  - code: vip_referral
    delta: 15
    active: true
    position: 9
`))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "missing_email", rules[0].Code)
	assert.Equal(t, -25, rules[0].Delta)
	assert.Equal(t, model.RuleScopeLead, rules[0].Scope)
	assert.Equal(t, 0, rules[0].Position)

	assert.Equal(t, "vip_referral", rules[1].Code)
	assert.Equal(t, 9, rules[1].Position)
}

func TestParseRulesYAML_Errors(t *testing.T) {
	_, err := parseRulesYAML([]byte(`rules: []`))
	assert.Error(t, err)

	_, err = parseRulesYAML([]byte("rules:\n  - delta: -5\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no code")

	_, err = parseRulesYAML([]byte("not yaml: ["))
	assert.Error(t, err)
}
