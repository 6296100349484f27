// Package assist wraps the opaque voice and AI collaborators: audio
// transcription, task extraction from free text, and week summaries. The
// extraction and summary calls shell out to an AI CLI; transcription posts to
// an HTTP endpoint. All three are stateless request/response functions.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"brainboard/pkg/task"
	"brainboard/pkg/timegrid"
)

// TaskSpec is a partial task extracted from transcribed text.
type TaskSpec struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Minutes     int    `json:"minutes"`
}

// invokeCLI runs the AI CLI with the given prompt and returns its result
// string. The CLI's JSON output wraps the result in a "result" field; raw
// stdout is used as a fallback when that parse fails.
func invokeCLI(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, "claude", "-p", prompt, "--output-format", "json")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run assistant: %w (stderr: %s)", err, stderr.String())
	}

	var parsed struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return stdout.String(), nil
	}
	return parsed.Result, nil
}

// ExtractTasks turns free text (typically a voice transcript) into task
// specs.
func ExtractTasks(ctx context.Context, text string) ([]TaskSpec, error) {
	prompt := fmt.Sprintf(`Extract actionable tasks from the following note.
Respond with ONLY a JSON array of objects with fields "title", "description"
and "minutes" (estimated duration, a multiple of %d). No other text.

Note:
%s`, timegrid.SlotMinutes, text)

	out, err := invokeCLI(ctx, prompt)
	if err != nil {
		return nil, err
	}
	specs, err := parseTaskSpecs(out)
	if err != nil {
		return nil, fmt.Errorf("parse extracted tasks: %w", err)
	}
	return specs, nil
}

// parseTaskSpecs decodes the model's JSON array, tolerating surrounding
// prose by slicing from the first '[' to the last ']'.
func parseTaskSpecs(out string) ([]TaskSpec, error) {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var specs []TaskSpec
	if err := json.Unmarshal([]byte(out[start:end+1]), &specs); err != nil {
		return nil, err
	}
	for i := range specs {
		if specs[i].Minutes < 1 {
			specs[i].Minutes = timegrid.SlotMinutes
		}
	}
	return specs, nil
}

// Summarize produces a short prose summary of the given tasks over a date
// range.
func Summarize(ctx context.Context, tasks []task.Task, from, to time.Time) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize this task list for %s through %s in a short paragraph. Mention what is scheduled, what is still in the inbox, and anything overdue.\n\n",
		timegrid.DayID(from), timegrid.DayID(to))
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s (%dm, %s, %s", t.Title, t.TimeEstimate, t.Priority, t.Status)
		if t.Scheduled() {
			fmt.Fprintf(&b, ", on %s", t.ScheduledDate)
			if t.ScheduledTime != "" {
				fmt.Fprintf(&b, " at %s", t.ScheduledTime)
			}
		}
		b.WriteString(")\n")
	}
	return invokeCLI(ctx, b.String())
}

// Transcriber posts audio to a speech-to-text endpoint.
type Transcriber struct {
	Endpoint string
	Client   *http.Client
}

// Transcribe sends one audio blob and returns the transcript.
func (tr *Transcriber) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	client := tr.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tr.Endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe: %s: %s", res.Status, body)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}
	return out.Text, nil
}
