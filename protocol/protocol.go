// Package protocol encodes meeting events as an OpenAI-compatible
// chat.completion.chunk stream over Server-Sent Events, so any chat client
// that understands streaming completions can render a meeting live.
//
// Narration and answer tokens travel as delta.content, model reasoning as
// delta.reasoning_content. The terminal event sets finish_reason to
// "waiting_human" or "stop" and the stream ends with "data: [DONE]".
package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/meetmesh/core"
)

// ObjectChunk is the object tag of every chunk.
const ObjectChunk = "chat.completion.chunk"

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// Delta is the incremental payload of a choice.
type Delta struct {
	Role             string  `json:"role,omitempty"`
	Content          *string `json:"content,omitempty"`
	ReasoningContent *string `json:"reasoning_content,omitempty"`
}

// Choice is the single choice of a chunk.
type Choice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Chunk is one chat.completion.chunk.
type Chunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Text returns the content of the first choice.
func (c Chunk) Text() string {
	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == nil {
		return ""
	}
	return *c.Choices[0].Delta.Content
}

// Reasoning returns the reasoning content of the first choice.
func (c Chunk) Reasoning() string {
	if len(c.Choices) == 0 || c.Choices[0].Delta.ReasoningContent == nil {
		return ""
	}
	return *c.Choices[0].Delta.ReasoningContent
}

// FinishReason returns the finish reason of the first choice or "".
func (c Chunk) FinishReason() string {
	if len(c.Choices) == 0 || c.Choices[0].FinishReason == nil {
		return ""
	}
	return *c.Choices[0].FinishReason
}

// ModelName is the model field announced for a meeting mode.
func ModelName(mode string) string { return "meetmesh-" + mode }

// Encoder writes chunks to an SSE response. It is not safe for concurrent
// use; one Encoder serves one response.
type Encoder struct {
	w        io.Writer
	flusher  interface{ Flush() }
	id       string
	model    string
	sentRole bool
	finished bool
	now      func() time.Time
}

// NewEncoder creates an Encoder announcing model. When w can be flushed it
// is flushed after every chunk.
func NewEncoder(w io.Writer, model string) *Encoder {
	enc := &Encoder{
		w:     w,
		id:    "chatcmpl-" + uuid.NewString(),
		model: model,
		now:   time.Now,
	}
	if f, ok := w.(interface{ Flush() }); ok {
		enc.flusher = f
	}
	return enc
}

// ID returns the completion id shared by all chunks.
func (e *Encoder) ID() string { return e.id }

// Encode writes the chunk(s) for one event. A terminal event writes its text
// (if any) followed by an empty chunk carrying the finish reason.
func (e *Encoder) Encode(ev core.Event) error {
	created := ev.UnixSeconds()
	if ev.Timestamp.IsZero() {
		created = e.now().Unix()
	}

	if ev.Text != "" {
		var delta Delta
		text := ev.Text
		if ev.IsReasoning() {
			delta.ReasoningContent = &text
		} else {
			delta.Content = &text
		}
		if err := e.write(created, delta, nil); err != nil {
			return err
		}
	}

	if ev.IsTerminal() {
		reason := ev.FinishReason
		return e.write(created, Delta{}, &reason)
	}
	return nil
}

// EncodeError reports err as content text and finishes the completion.
func (e *Encoder) EncodeError(err error) error {
	text := fmt.Sprintf("\n\n> 会议出错：%v\n", err)
	if werr := e.write(e.now().Unix(), Delta{Content: &text}, nil); werr != nil {
		return werr
	}
	reason := core.FinishReasonStop
	return e.write(e.now().Unix(), Delta{}, &reason)
}

// Done writes the [DONE] marker.
func (e *Encoder) Done() error {
	if _, err := io.WriteString(e.w, dataPrefix+doneMarker+"\n\n"); err != nil {
		return err
	}
	e.flush()
	return nil
}

// Finished reports whether a finish reason has been written.
func (e *Encoder) Finished() bool { return e.finished }

func (e *Encoder) write(created int64, delta Delta, finish *string) error {
	if !e.sentRole {
		delta.Role = "assistant"
		e.sentRole = true
	}
	chunk := Chunk{
		ID:      e.id,
		Object:  ObjectChunk,
		Created: created,
		Model:   e.model,
		Choices: []Choice{{Index: 0, Delta: delta, FinishReason: finish}},
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("encode chunk: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", dataPrefix, data); err != nil {
		return err
	}
	if finish != nil {
		e.finished = true
	}
	e.flush()
	return nil
}

func (e *Encoder) flush() {
	if e.flusher != nil {
		e.flusher.Flush()
	}
}

// ReadChunks parses an SSE chunk stream up to [DONE] or EOF. It reports
// whether the [DONE] marker was seen.
func ReadChunks(r io.Reader) ([]Chunk, bool, error) {
	var chunks []Chunk
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(line, dataPrefix)
		if payload == doneMarker {
			return chunks, true, nil
		}
		var c Chunk
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return chunks, false, fmt.Errorf("decode chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, false, scanner.Err()
}

// Content concatenates the content of chunks.
func Content(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text())
	}
	return sb.String()
}
