package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestJobValid(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want bool
	}{
		{"viral with url", Job{Mode: "viral", URL: "https://example.com/v"}, true},
		{"viral without url", Job{Mode: "viral"}, false},
		{"story with audio", Job{Mode: "story", AudioPath: "voice.wav"}, true},
		{"story without audio", Job{Mode: "story"}, false},
		{"default mode needs url", Job{URL: "https://example.com/v"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.job.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTypedHandlerProcessesValidMessage(t *testing.T) {
	var got *Job
	h := &TypedMessageHandler[Job]{
		Validate: func(j *Job) bool { return j.Valid() },
		Process: func(ctx context.Context, j *Job) error {
			got = j
			return nil
		},
		Logger: zerolog.Nop(),
	}

	mark, err := h.HandleMessage(context.Background(), []byte(`{"id":"j1","mode":"viral","url":"https://example.com/v"}`))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !mark {
		t.Error("successful messages must be marked")
	}
	if got == nil || got.ID != "j1" {
		t.Errorf("job not delivered: %+v", got)
	}
}

func TestTypedHandlerSkipsMalformedPayload(t *testing.T) {
	h := &TypedMessageHandler[Job]{
		Process:    func(ctx context.Context, j *Job) error { t.Fatal("must not process"); return nil },
		AlwaysMark: true,
		Logger:     zerolog.Nop(),
	}

	mark, err := h.HandleMessage(context.Background(), []byte(`not json`))
	if err != nil {
		t.Fatalf("malformed payload must not error: %v", err)
	}
	if !mark {
		t.Error("AlwaysMark should skip past poison messages")
	}
}

func TestTypedHandlerLeavesFailedMessageUnmarked(t *testing.T) {
	h := &TypedMessageHandler[Job]{
		Process: func(ctx context.Context, j *Job) error { return errors.New("transient") },
		Logger:  zerolog.Nop(),
	}

	mark, err := h.HandleMessage(context.Background(), []byte(`{"id":"j2","mode":"viral","url":"u"}`))
	if err == nil {
		t.Fatal("expected process error")
	}
	if mark {
		t.Error("failed messages must stay unmarked for retry")
	}
}

func TestTypedHandlerValidationFailure(t *testing.T) {
	h := &TypedMessageHandler[Job]{
		Validate: func(j *Job) bool { return j.Valid() },
		Process:  func(ctx context.Context, j *Job) error { t.Fatal("must not process"); return nil },
		Logger:   zerolog.Nop(),
	}

	mark, err := h.HandleMessage(context.Background(), []byte(`{"id":"j3","mode":"viral"}`))
	if err != nil {
		t.Fatalf("validation failure must not error: %v", err)
	}
	if mark {
		t.Error("invalid message without AlwaysMark must stay unmarked")
	}
}
