package llm

import (
	"context"
	"errors"
	"testing"
)

func TestCompleteWithoutKey(t *testing.T) {
	c := NewOpenAIClient("", "", "llama-3.1-8b-instant")

	_, err := c.Complete(context.Background(), Request{System: "sys", User: "hi"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
