package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AssistantClient работает с OpenAI Assistants API: создает тред, кладет в
// него сообщение, запускает ассистента и опрашивает статус до завершения.
// Для движка это тот же вызов "стенограмма -> результат", что и completions.
type AssistantClient struct {
	apiKey       string
	baseURL      string
	assistantID  string
	pollInterval time.Duration
	maxAttempts  int
	client       *http.Client
}

type threadResponse struct {
	ID    string    `json:"id"`
	Error *APIError `json:"error,omitempty"`
}

type runResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	LastError *APIError `json:"last_error,omitempty"`
	Error     *APIError `json:"error,omitempty"`
}

type threadMessagesResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
	Error *APIError `json:"error,omitempty"`
}

func NewAssistantClient(apiKey, assistantID string) *AssistantClient {
	return &AssistantClient{
		apiKey:       apiKey,
		baseURL:      openaiBaseURL,
		assistantID:  assistantID,
		pollInterval: 5 * time.Second,
		maxAttempts:  60,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetBaseURL переопределяет адрес API (используется в тестах)
func (c *AssistantClient) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// SetPolling переопределяет интервал и число попыток опроса (для тестов)
func (c *AssistantClient) SetPolling(interval time.Duration, maxAttempts int) {
	c.pollInterval = interval
	c.maxAttempts = maxAttempts
}

// Analyze прогоняет одно сообщение через ассистента и возвращает его ответ
func (c *AssistantClient) Analyze(ctx context.Context, content string) (string, error) {
	threadID, err := c.createThread(ctx)
	if err != nil {
		return "", err
	}

	if err := c.addMessage(ctx, threadID, content); err != nil {
		return "", err
	}

	runID, err := c.createRun(ctx, threadID)
	if err != nil {
		return "", err
	}

	if err := c.waitForRun(ctx, threadID, runID); err != nil {
		return "", err
	}

	reply, err := c.latestAssistantMessage(ctx, threadID)
	if err != nil {
		return "", err
	}

	return CleanJSONResponse(reply), nil
}

func (c *AssistantClient) createThread(ctx context.Context) (string, error) {
	var thread threadResponse
	if err := c.post(ctx, "/threads", nil, &thread); err != nil {
		return "", fmt.Errorf("error creating thread: %w", err)
	}
	if thread.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", thread.Error.Message)
	}
	if thread.ID == "" {
		return "", fmt.Errorf("no thread id returned")
	}
	return thread.ID, nil
}

func (c *AssistantClient) addMessage(ctx context.Context, threadID, content string) error {
	payload := map[string]string{
		"role":    "user",
		"content": content,
	}
	var resp struct {
		Error *APIError `json:"error,omitempty"`
	}
	if err := c.post(ctx, "/threads/"+threadID+"/messages", payload, &resp); err != nil {
		return fmt.Errorf("error adding message to thread: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("OpenAI API error: %s", resp.Error.Message)
	}
	return nil
}

func (c *AssistantClient) createRun(ctx context.Context, threadID string) (string, error) {
	payload := map[string]string{
		"assistant_id": c.assistantID,
	}
	var run runResponse
	if err := c.post(ctx, "/threads/"+threadID+"/runs", payload, &run); err != nil {
		return "", fmt.Errorf("error creating run: %w", err)
	}
	if run.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", run.Error.Message)
	}
	if run.ID == "" {
		return "", fmt.Errorf("no run id returned")
	}
	return run.ID, nil
}

// waitForRun опрашивает статус run до completed либо терминальной ошибки
func (c *AssistantClient) waitForRun(ctx context.Context, threadID, runID string) error {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}

		var run runResponse
		if err := c.get(ctx, "/threads/"+threadID+"/runs/"+runID, &run); err != nil {
			return fmt.Errorf("error checking run status: %w", err)
		}
		if run.Error != nil {
			return fmt.Errorf("OpenAI API error: %s", run.Error.Message)
		}

		switch run.Status {
		case "completed":
			return nil
		case "failed":
			msg := "unknown error"
			if run.LastError != nil {
				msg = run.LastError.Message
			}
			return fmt.Errorf("assistant run failed: %s", msg)
		case "cancelled":
			return fmt.Errorf("assistant run was cancelled")
		case "expired":
			return fmt.Errorf("assistant run expired")
		}
	}

	return fmt.Errorf("assistant run did not complete after %d attempts", c.maxAttempts)
}

// latestAssistantMessage возвращает текст последнего ответа ассистента в треде
func (c *AssistantClient) latestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	var messages threadMessagesResponse
	if err := c.get(ctx, "/threads/"+threadID+"/messages", &messages); err != nil {
		return "", fmt.Errorf("error getting thread messages: %w", err)
	}
	if messages.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", messages.Error.Message)
	}

	// Messages API отдает сообщения от новых к старым
	for _, msg := range messages.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == "text" && part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}

	return "", fmt.Errorf("no assistant response found in thread")
}

func (c *AssistantClient) post(ctx context.Context, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		body = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	return c.do(req, out)
}

func (c *AssistantClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	return c.do(req, out)
}

func (c *AssistantClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OpenAI API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}

	return nil
}
