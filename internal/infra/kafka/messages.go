package kafka

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"testpipe/internal/domain/testrun"
)

const (
	messageTypeTest = "test"
	messageTypeDone = "done"
)

type testEnvelope struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Source string `json:"source"`
}

type resultEnvelope struct {
	ID         string            `json:"id"`
	Passed     bool              `json:"passed"`
	DurationMs int64             `json:"duration_ms"`
	Failures   []failureEnvelope `json:"failures,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

type failureEnvelope struct {
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

func decodeTestMessage(msg kafkago.Message) (testrun.Test, error) {
	var envelope testEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return testrun.Test{}, fmt.Errorf("decode message: %w", err)
	}

	msgType := envelope.Type
	if msgType == "" {
		msgType = messageTypeTest
	}

	switch msgType {
	case messageTypeTest:
		return envelope.toTest(msg)
	case messageTypeDone:
		return testrun.Test{}, io.EOF
	default:
		return testrun.Test{}, fmt.Errorf("unknown message type %q", msgType)
	}
}

func (e testEnvelope) toTest(msg kafkago.Message) (testrun.Test, error) {
	if e.Source == "" {
		return testrun.Test{}, fmt.Errorf("test message missing source")
	}

	testID := e.ID
	if testID == "" {
		testID = string(msg.Key)
	}
	if testID == "" {
		testID = fmt.Sprintf("%s:%d", msg.Topic, msg.Offset)
	}

	return testrun.Test{ID: testID, Source: e.Source}, nil
}

func encodeResult(result testrun.Result) ([]byte, error) {
	payload, err := json.Marshal(makeResultEnvelope(result))
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return payload, nil
}

func makeResultEnvelope(result testrun.Result) resultEnvelope {
	var failures []failureEnvelope
	if len(result.Failures) > 0 {
		failures = make([]failureEnvelope, 0, len(result.Failures))
		for _, failure := range result.Failures {
			envelope := failureEnvelope{Message: failure.Msg}
			if failure.Cause != nil {
				envelope.Cause = failure.Cause.Error()
			}
			failures = append(failures, envelope)
		}
	}

	return resultEnvelope{
		ID:         result.TestID,
		Passed:     result.Passed(),
		DurationMs: result.Duration.Milliseconds(),
		Failures:   failures,
		Timestamp:  time.Now().UTC(),
	}
}
