package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"input", &InputError{Reason: "no audio stream"}, KindInput},
		{"connectivity", &ConnectivityError{Err: errors.New("connection refused")}, KindConnectivity},
		{"timeout", &TimeoutError{Attempts: 4, FinalTimeout: 405 * time.Second}, KindTimeout},
		{"schema", &SchemaError{Field: "quiz"}, KindSchema},
		{"validation", &ValidationError{Question: 0, Detail: "bad answer"}, KindValidation},
		{"artifact", &ArtifactError{Kind: ArtifactWorkbook, Err: errors.New("disk full")}, KindArtifact},
		{"wrapped", fmt.Errorf("stage failed: %w", &InputError{Reason: "empty"}), KindInput},
		{"unknown", errors.New("something else"), KindInternal},
		{"backend", &BackendError{Err: errors.New("500")}, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestValidationError_OneBasedMessage(t *testing.T) {
	err := &ValidationError{Question: 0, Detail: "no matching option"}
	assert.Contains(t, err.Error(), "question 1")
}

func TestConnectivityError_Hint(t *testing.T) {
	err := &ConnectivityError{Err: errors.New("dial tcp: connection refused")}
	assert.Contains(t, err.Error(), "is the model server running?")
}

func TestNonWhitespaceLen(t *testing.T) {
	assert.Equal(t, 0, NonWhitespaceLen("   \n\t  "))
	assert.Equal(t, 5, NonWhitespaceLen(" h e l l o "))
	assert.Equal(t, 2, NonWhitespaceLen("héllo"[:3]+" ")) // multibyte rune counts once
}
