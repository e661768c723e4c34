// Package script turns raw material (headlines, weather reports, the
// clock) into spoken-word copy, using an OpenAI-compatible chat endpoint
// when a key is present and canned phrasing when it is not.
package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pirateradio/internal/producers/news"
	"pirateradio/internal/producers/weather"
	logx "pirateradio/pkg/logx"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

type Config struct {
	// APIKey comes from the environment, never from config files.
	APIKey  string
	Model   string
	Style   string
	Station string
}

// Writer produces broadcast copy. With an empty APIKey every method falls
// back to deterministic template text, so the station keeps speaking when
// the LLM is unreachable or unconfigured.
type Writer struct {
	cfg    Config
	client *openai.Client
	log    logx.Logger
}

func NewWriter(cfg Config, log logx.Logger) *Writer {
	w := &Writer{cfg: cfg, log: log}
	if strings.TrimSpace(cfg.APIKey) != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		oc.BaseURL = groqBaseURL
		w.client = openai.NewClientWithConfig(oc)
	}
	if w.cfg.Model == "" {
		w.cfg.Model = "llama-3.3-70b-versatile"
	}
	if w.cfg.Style == "" {
		w.cfg.Style = "professional"
	}
	return w
}

// News writes a bulletin script from the given headlines.
func (w *Writer) News(ctx context.Context, items []news.Item) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("script: no headlines")
	}
	if w.client == nil {
		return w.newsFallback(items), nil
	}

	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s (source: %s)\n", i+1, it.Title, it.Source)
	}
	prompt := fmt.Sprintf(
		"Write a %s radio news bulletin for the station %q covering these stories:\n%s\n"+
			"Rules: plain spoken prose only, no markdown, no headers, no sound cues. "+
			"Open with a short station greeting, cover each story in one or two sentences, "+
			"close with a handover back to the music. Keep it under 250 words.",
		w.cfg.Style, w.cfg.Station, b.String())

	// A failed bulletin must not air as canned filler: the caller skips
	// the slot and retries on the next cadence pass instead.
	out, err := w.complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("script: bulletin: %w", err)
	}
	return out, nil
}

// Weather writes a short weather break from the report.
func (w *Writer) Weather(ctx context.Context, rep *weather.Report) (string, error) {
	if rep == nil {
		return "", fmt.Errorf("script: nil weather report")
	}
	if w.client == nil {
		return w.weatherFallback(rep), nil
	}

	prompt := fmt.Sprintf(
		"Write a %s radio weather break for the station %q. Conditions in %s: "+
			"%s, %d degrees Celsius, feels like %d, humidity %d%%, wind %d km/h. "+
			"Plain spoken prose, two or three sentences, no markdown.",
		w.cfg.Style, w.cfg.Station, rep.City, rep.Condition,
		rep.TempC, rep.FeelsLikeC, rep.Humidity, rep.WindKmph)

	out, err := w.complete(ctx, prompt)
	if err != nil {
		w.log.Warn("weather copy generation failed, using fallback", logx.Err(err))
		return w.weatherFallback(rep), nil
	}
	return out, nil
}

// TimeCheck writes the hourly time announcement.
func (w *Writer) TimeCheck(ctx context.Context, now time.Time) (string, error) {
	spoken := now.Format("3:04 PM")
	if w.client == nil {
		return fmt.Sprintf("You're listening to %s. The time is %s.", w.cfg.Station, spoken), nil
	}

	prompt := fmt.Sprintf(
		"Write a one-sentence radio time announcement for the station %q. "+
			"The time is %s. Plain spoken prose, no markdown.",
		w.cfg.Station, spoken)

	out, err := w.complete(ctx, prompt)
	if err != nil {
		return fmt.Sprintf("You're listening to %s. The time is %s.", w.cfg.Station, spoken), nil
	}
	return out, nil
}

// Interstitial writes a short station ident around the given phrase.
func (w *Writer) Interstitial(ctx context.Context, phrase string) (string, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		phrase = fmt.Sprintf("You're locked in to %s.", w.cfg.Station)
	}
	if w.client == nil {
		return phrase, nil
	}

	prompt := fmt.Sprintf(
		"Rewrite this radio station ident in a %s voice, one sentence, "+
			"plain spoken prose, no markdown: %q", w.cfg.Style, phrase)

	out, err := w.complete(ctx, prompt)
	if err != nil {
		return phrase, nil
	}
	return out, nil
}

func (w *Writer) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: w.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an on-air radio script writer. Output only the words to be spoken.",
			},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.8,
		MaxTokens:   512,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("script: empty completion")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("script: blank completion")
	}
	return out, nil
}

func (w *Writer) newsFallback(items []news.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This is %s with the headlines. ", w.cfg.Station)
	for _, it := range items {
		fmt.Fprintf(&b, "%s. ", strings.TrimRight(it.Title, "."))
	}
	b.WriteString("And now, back to the music.")
	return b.String()
}

func (w *Writer) weatherFallback(rep *weather.Report) string {
	cond := strings.ToLower(rep.Condition)
	if cond == "" {
		cond = "steady"
	}
	return fmt.Sprintf(
		"Weather check from %s: it's %s in %s at %d degrees, feels like %d. Back to the music.",
		w.cfg.Station, cond, rep.City, rep.TempC, rep.FeelsLikeC)
}
