package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analytics-go/internal/types"
)

const billingCall = `Agent: Thank you for calling Acme support, this is Sarah. How can I help you today?
Customer: Hi Sarah, I was charged twice for my subscription this month.
Agent: I am sorry about that. Let me look at your account and fix the duplicate charge.
Customer: Thank you, I really appreciate the quick help.`

func TestPreValidate(t *testing.T) {
	assert.Empty(t, PreValidate(billingCall))

	cases := map[string]string{
		"too short":  "Agent: hi",
		"no dialog":  strings.Repeat("word ", 30),
		"music":      "Verse: " + strings.Repeat("la la love you baby tonight ", 5) + "\nChorus: ooh. ooh. ooh.",
		"gibberish":  "Agent: " + strings.Repeat("#$%^&*()! ", 10),
		"few words":  "Agent: Supercalifragilisticexpialidocious antidisestablishmentarianism.",
		"repetitive": "Agent: " + strings.Repeat("hello ", 40),
		"bad utf8":   "Agent: " + strings.Repeat("valid words here ", 5) + string([]byte{0xff, 0xfe}),
	}
	for name, text := range cases {
		assert.NotEmpty(t, PreValidate(text), name)
	}
}

func TestNormalizeTurns(t *testing.T) {
	turns := NormalizeTurns([]types.Turn{
		{Speaker: "Rep", Text: "Hello."},
		{Speaker: "CSR", Text: "How can I help?"},
		{Speaker: "caller", Text: "Hi."},
		{Speaker: "Client", Text: ""},
		{Speaker: "Manager", Text: "Stepping in."},
	})
	assert.Equal(t, []types.Turn{
		{Speaker: "Agent", Text: "Hello. How can I help?"},
		{Speaker: "Customer", Text: "Hi."},
		{Speaker: "Manager", Text: "Stepping in."},
	}, turns)
}

func TestIntakeExtractsMetadata(t *testing.T) {
	llm := CompleterFunc(func(_ context.Context, prompt string) (string, error) {
		assert.True(t, strings.HasPrefix(prompt, taskIntake))
		assert.Contains(t, prompt, "this is Sarah")
		return "```json\n" + `{"is_valid": true, "metadata": {"agent_name": " Sarah ", "caller_name": "unknown",
			"call_duration": "4 minutes", "date_time": null, "call_id": "N/A"}}` + "\n```", nil
	})
	res, err := NewIntakeExtractor(llm, nil).Extract(context.Background(), billingCall)
	require.NoError(t, err)
	require.NotNil(t, res.Metadata)

	agent, ok := res.Metadata.Agent()
	assert.True(t, ok)
	assert.Equal(t, "Sarah", agent)
	assert.Empty(t, res.Metadata.CallerName)
	assert.Equal(t, "4 minutes", res.Metadata.Duration)
	assert.Empty(t, res.Metadata.CallTime)
	assert.Empty(t, res.Metadata.ExternalID)
	require.Len(t, res.Turns, 4)
	assert.Equal(t, "Agent", res.Turns[0].Speaker)
}

func TestIntakeUnknownAgentStaysNil(t *testing.T) {
	llm := CompleterFunc(func(context.Context, string) (string, error) {
		return `{"is_valid": true, "metadata": {"agent_name": "Not mentioned"}}`, nil
	})
	res, err := NewIntakeExtractor(llm, nil).Extract(context.Background(), billingCall)
	require.NoError(t, err)
	require.NotNil(t, res.Metadata)
	assert.Nil(t, res.Metadata.AgentName)
}

func TestIntakeRejectsBeforeCallingModel(t *testing.T) {
	called := false
	llm := CompleterFunc(func(context.Context, string) (string, error) {
		called = true
		return "", nil
	})
	res, err := NewIntakeExtractor(llm, nil).Extract(context.Background(), "Agent: hi")
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, called)
	assert.Empty(t, res.Turns)
	assert.Nil(t, res.Metadata)
}

func TestIntakeModelVerdicts(t *testing.T) {
	invalid := CompleterFunc(func(context.Context, string) (string, error) {
		return `{"is_valid": false, "validation_reason": "this is a podcast"}`, nil
	})
	res, err := NewIntakeExtractor(invalid, nil).Extract(context.Background(), billingCall)
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "this is a podcast", verr.Reason)
	assert.NotEmpty(t, res.Turns, "turns survive a rejected verdict")

	garbage := CompleterFunc(func(context.Context, string) (string, error) { return "I cannot help", nil })
	_, err = NewIntakeExtractor(garbage, nil).Extract(context.Background(), billingCall)
	require.ErrorAs(t, err, &verr)

	down := CompleterFunc(func(context.Context, string) (string, error) { return "", errors.New("gateway down") })
	res, err = NewIntakeExtractor(down, nil).Extract(context.Background(), billingCall)
	require.Error(t, err)
	assert.False(t, errors.As(err, &verr))
	assert.NotEmpty(t, res.Turns)
}

func TestBuildIntakePromptTruncates(t *testing.T) {
	long := strings.Repeat("a", intakeTextLimit+500)
	prompt := buildIntakePrompt(long)
	assert.NotContains(t, prompt, strings.Repeat("a", intakeTextLimit+1))
	assert.Contains(t, prompt, strings.Repeat("a", intakeTextLimit))
}
