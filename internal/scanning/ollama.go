package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama implements Transcriber, Structurer, and TextModel against a local
// Ollama server.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama provider instance.
// Recommended vision models for receipt transcription (in order):
//   - llava:1.6 (best balance of accuracy and speed)
//   - llava:latest (general purpose vision model)
//   - qwen2-vl:7b (good OCR capabilities)
//   - bakllava (alternative vision model)
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // vision models can be slow
		},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Images   []string        `json:"images,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Transcribe converts a receipt image into unstructured text.
func (o *Ollama) Transcribe(ctx context.Context, imageData []byte, contentType string) (string, error) {
	messages := []ollamaMessage{
		{
			Role:    "system",
			Content: "You are an expert at reading receipts and invoices. You carefully transcribe all text in images without interpreting it.",
		},
		{
			Role:    "user",
			Content: transcribePrompt,
		},
	}
	images := []string{base64.StdEncoding.EncodeToString(imageData)}

	return o.chat(ctx, messages, images)
}

// Structure converts raw receipt text into a validated StructuredReceipt.
func (o *Ollama) Structure(ctx context.Context, rawText string) (*StructuredReceipt, error) {
	messages := []ollamaMessage{
		{
			Role:    "user",
			Content: structurePrompt(rawText),
		},
	}

	text, err := o.chat(ctx, messages, nil)
	if err != nil {
		return nil, err
	}

	receipt, err := parseStructuredReceipt(text)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}
	return receipt, nil
}

// Complete runs a plain text completion.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	return o.chat(ctx, []ollamaMessage{{Role: "user", Content: prompt}}, nil)
}

// chat issues a single non-streaming chat call and returns the reply text.
func (o *Ollama) chat(ctx context.Context, messages []ollamaMessage, images []string) (string, error) {
	reqBody := ollamaChatRequest{
		Model:    o.model,
		Stream:   false,
		Messages: messages,
		Images:   images,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return strings.TrimSpace(chatResp.Message.Content), nil
}

// Close closes the Ollama provider (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
