package oracle

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"safewatch/log"
)

//go:embed policy.md
var Policy string

const (
	DefaultModel = "gemini-2.0-flash"
	DefaultURL   = "https://generativelanguage.googleapis.com/v1beta"

	requestTimeout = 60 * time.Second
)

type Gemini struct {
	client *TracedClient
	apiKey string
	model  string
	base   string
}

// NewGemini returns a client for the generateContent endpoint. Empty model
// or base fall back to the defaults.
func NewGemini(apiKey, model, base string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	if base == "" {
		base = DefaultURL
	}
	return &Gemini{
		client: NewTracedClient(requestTimeout),
		apiKey: apiKey,
		model:  model,
		base:   strings.TrimRight(base, "/"),
	}
}

func (g *Gemini) Name() string { return "gemini/" + g.model }

type part struct {
	Text         string        `json:"text,omitempty"`
	InlineData   *inlineData   `json:"inlineData,omitempty"`
	FunctionCall *functionCall `json:"functionCall,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Enum        []string          `json:"enum,omitempty"`
	Properties  map[string]schema `json:"properties,omitempty"`
	Required    []string          `json:"required,omitempty"`
}

type functionDecl struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  schema `json:"parameters"`
}

type tool struct {
	FunctionDeclarations []functionDecl `json:"functionDeclarations"`
}

type toolConfig struct {
	FunctionCallingConfig struct {
		Mode string `json:"mode"`
	} `json:"functionCallingConfig"`
}

type generateRequest struct {
	SystemInstruction content    `json:"systemInstruction"`
	Contents          []content  `json:"contents"`
	Tools             []tool     `json:"tools"`
	ToolConfig        toolConfig `json:"toolConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

var declarations = []functionDecl{
	{
		Name:        ToolViolation,
		Description: "Report the most severe safety violation visible in the frame.",
		Parameters: schema{
			Type: "object",
			Properties: map[string]schema{
				"severity":        {Type: "string", Enum: []string{"low", "medium", "high", "critical"}},
				"message":         {Type: "string", Description: "One short sentence naming the hazard."},
				"location":        {Type: "string", Description: "Where the hazard is."},
				"reasoning_steps": {Type: "string", Description: "Numbered list of observations, e.g. \"1. ... 2. ...\"."},
			},
			Required: []string{"severity", "message", "location", "reasoning_steps"},
		},
	},
	{
		Name:        ToolSafe,
		Description: "Report that no violation is visible in the frame.",
		Parameters: schema{
			Type: "object",
			Properties: map[string]schema{
				"location":        {Type: "string", Description: "Area that was checked."},
				"reasoning_steps": {Type: "string", Description: "Numbered list of what was checked."},
			},
			Required: []string{"location", "reasoning_steps"},
		},
	},
}

func (g *Gemini) buildRequest(frame []byte) generateRequest {
	var req generateRequest
	req.SystemInstruction = content{Parts: []part{{Text: Policy}}}
	req.Contents = []content{{
		Role: "user",
		Parts: []part{
			{InlineData: &inlineData{MimeType: mimeType(frame), Data: base64.StdEncoding.EncodeToString(frame)}},
			{Text: "Analyze this frame against the site safety policy."},
		},
	}}
	req.Tools = []tool{{FunctionDeclarations: declarations}}
	req.ToolConfig.FunctionCallingConfig.Mode = "ANY"
	return req
}

func mimeType(frame []byte) string {
	mt := http.DetectContentType(frame)
	switch mt {
	case "image/png", "image/jpeg", "image/webp":
		return mt
	}
	return "image/jpeg"
}

func (g *Gemini) Analyze(ctx context.Context, frame []byte) (*Verdict, error) {
	payload, err := json.Marshal(g.buildRequest(frame))
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.base, g.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	outcome := "error"
	defer func() {
		log.Analysis(log.AnalysisMetrics{
			Oracle:     g.Name(),
			FrameKB:    float64(len(frame)) / 1024,
			DNSMs:      ms(resp.Metrics.DNS),
			TLSMs:      ms(resp.Metrics.TLS),
			TTFBMs:     ms(resp.Metrics.TTFB),
			TotalMs:    ms(resp.Metrics.Total),
			ConnReused: resp.Metrics.ConnReused,
			Outcome:    outcome,
		})
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gemini API error %d: %s", ErrUnavailable, resp.StatusCode, truncate(resp.Body, 200))
	}

	var gr generateResponse
	if err := json.Unmarshal(resp.Body, &gr); err != nil {
		return nil, fmt.Errorf("%w: gemini response parse error: %v", ErrMalformedVerdict, err)
	}

	for _, c := range gr.Candidates {
		for _, p := range c.Content.Parts {
			if p.FunctionCall == nil {
				continue
			}
			v, err := ParseToolCall(p.FunctionCall.Name, p.FunctionCall.Args)
			if err != nil {
				return nil, err
			}
			v.Metrics = resp.Metrics
			outcome = "violation"
			if v.Safe {
				outcome = "safe"
			}
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: no function call in response", ErrMalformedVerdict)
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
