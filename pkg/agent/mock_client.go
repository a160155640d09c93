package agent

import (
	"context"
	"fmt"
)

// MockLLMClient provides a controllable implementation of LLMClient for testing.
type MockLLMClient struct {
	responses     []CompletionResponse
	responseIndex int
	errors        []error
	errorIndex    int

	// Requests records every request received, in order.
	Requests []CompletionRequest
}

// NewMockLLMClient creates a new mock client with predefined responses.
func NewMockLLMClient(responses []CompletionResponse, errors []error) *MockLLMClient {
	return &MockLLMClient{
		responses: responses,
		errors:    errors,
	}
}

// Complete returns the next predefined response or error.
func (m *MockLLMClient) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.Requests = append(m.Requests, req)

	if m.errorIndex < len(m.errors) && m.errors[m.errorIndex] != nil {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		return CompletionResponse{}, err
	}

	if m.responseIndex >= len(m.responses) {
		return CompletionResponse{}, fmt.Errorf("mock client: no more responses")
	}

	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// GetModelName returns a fixed identifier for the mock.
func (m *MockLLMClient) GetModelName() string {
	return "mock-model"
}
