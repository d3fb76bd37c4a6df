package anthropic

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stretchr/testify/require"
)

type fakeMessagesClient struct{}

func (fakeMessagesClient) New(_ context.Context, _ sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	return &sdk.Message{}, nil
}

func TestNewRejectsNilClient(t *testing.T) {
	_, err := New(nil, Options{Model: "claude-3-5-sonnet-latest"})
	require.Error(t, err)
}

func TestNewRejectsEmptyModel(t *testing.T) {
	_, err := New(fakeMessagesClient{}, Options{})
	require.Error(t, err)
}

func TestNewDefaultsMaxTokens(t *testing.T) {
	r, err := New(fakeMessagesClient{}, Options{Model: "claude-3-5-sonnet-latest"})
	require.NoError(t, err)
	require.Equal(t, int64(1024), r.maxTokens)
}

func TestNewFromAPIKeyRejectsEmptyKey(t *testing.T) {
	_, err := NewFromAPIKey("", "claude-3-5-sonnet-latest")
	require.Error(t, err)
}

func TestExtractJSONStripsSurroundingProse(t *testing.T) {
	text := "Sure, here is the decision:\n{\"reasoning\":\"ok\"}\nLet me know if that helps."
	require.JSONEq(t, `{"reasoning":"ok"}`, extractJSON(text))
}

func TestExtractJSONPassesThroughWhenNoBraces(t *testing.T) {
	require.Equal(t, "no json here", extractJSON("no json here"))
}
