package effectors

import (
	"context"
	"testing"

	"github.com/vthunder/mneme/internal/config"
	"github.com/vthunder/mneme/internal/state"
)

func TestSendPacedSplitsAndSendsEveryChunk(t *testing.T) {
	pacer := NewPacer(config.Expression{SplitThresholds: []int{20}})
	mock := NewMockEffector("")

	text := "This is the first part.\nThis is a second, unrelated part that runs long enough to need its own chunk."
	if err := SendPaced(context.Background(), mock, pacer, "chan-1", text, state.Affect{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := mock.Sent()
	var sends, typings int
	for _, s := range sent {
		switch s.Kind {
		case "send":
			sends++
			if s.ChannelID != "chan-1" {
				t.Errorf("expected channel chan-1, got %q", s.ChannelID)
			}
		case "typing":
			typings++
		}
	}
	if sends < 2 {
		t.Errorf("expected at least 2 send chunks for a long response, got %d", sends)
	}
	if typings != sends {
		t.Errorf("expected one typing indicator per send, got %d typings for %d sends", typings, sends)
	}
}

func TestSendPacedEmptyTextSendsNothing(t *testing.T) {
	pacer := NewPacer(config.Expression{})
	mock := NewMockEffector("")

	if err := SendPaced(context.Background(), mock, pacer, "chan-1", "   \n  ", state.Affect{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Sent()) != 0 {
		t.Errorf("expected no sends for blank input, got %+v", mock.Sent())
	}
}

func TestSendPacedRespectsCancellation(t *testing.T) {
	pacer := NewPacer(config.Expression{})
	mock := NewMockEffector("")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SendPaced(ctx, mock, pacer, "chan-1", "hello there", state.Affect{})
	if err == nil {
		t.Error("expected a cancelled context to abort SendPaced")
	}
}
