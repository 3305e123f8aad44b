// Package trends enriches forecast answers with exogenous market signals:
// LLM-generated search keywords per product, matched against the Google
// Trends feed. Enrichment is optional decoration; it never affects
// resolution and every failure degrades to "no trends".
package trends

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"demand_forecasting/pkg/core/combination"
	"demand_forecasting/pkg/core/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultFeedURL = "https://trends.google.com/trending/rss?geo=IT"

// Story is one trending topic matched to a product's keywords.
type Story struct {
	Title   string `json:"title"`
	Traffic string `json:"traffic,omitempty"`
}

// ProductTrend is the enrichment for a single product.
type ProductTrend struct {
	Product     string   `json:"product"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Stories     []Story  `json:"stories,omitempty"`
}

// Analyzer generates keywords with Gemini and scans the trends feed.
type Analyzer struct {
	client    *genai.Client
	modelName string
	http      *http.Client
	feedURL   string
}

// NewAnalyzer builds the analyzer. Without GEMINI_API_KEY the keyword agent
// is disabled and keywords fall back to the product description.
func NewAnalyzer(ctx context.Context) *Analyzer {
	a := &Analyzer{
		modelName: "gemini-2.0-flash-exp",
		http:      &http.Client{Timeout: 20 * time.Second},
		feedURL:   defaultFeedURL,
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Println("[TRENDS] GEMINI_API_KEY not set, keyword generation disabled")
		return a
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		fmt.Printf("[TRENDS] failed to create Gemini client: %v\n", err)
		return a
	}
	a.client = client
	return a
}

// SetFeedURL overrides the trends feed endpoint, for tests.
func (a *Analyzer) SetFeedURL(url string) {
	a.feedURL = url
}

// AnalyzeProducts enriches each product: description lookup, keyword
// generation, trends feed scan. labels maps product id to display name.
func (a *Analyzer) AnalyzeProducts(ctx context.Context, products []string, period combination.Period, labels map[string]string) map[string]*ProductTrend {
	stories := a.fetchStories(ctx)

	results := make(map[string]*ProductTrend, len(products))
	for _, product := range products {
		description := labels[product]
		if description == "" {
			description = fmt.Sprintf("Product %s", product)
		}

		keywords := a.generateKeywords(ctx, product, description)

		trend := &ProductTrend{
			Product:     product,
			Description: description,
			Keywords:    keywords,
		}
		trend.Stories = matchStories(stories, keywords)
		results[product] = trend
	}
	return results
}

// generateKeywords asks Gemini for search keywords tied to the product's
// distinctive characteristics. Falls back to the description itself.
func (a *Analyzer) generateKeywords(ctx context.Context, product, description string) []string {
	if a.client == nil {
		return fallbackKeywords(description)
	}

	model := a.client.GenerativeModel(a.modelName)
	model.SetTemperature(0.4)

	prompt := fmt.Sprintf(`You are a market analyst for a food producer.
Generate 5 search keywords for Google Trends to analyze exogenous factors
that could influence sales of this product.

Product code: %s
Product description: %s

Rules:
- Keywords must be tied to the product's specific ingredients or type
- Terms real consumers search for, 2-4 words each
- Same language as the product description

Return ONLY a JSON array of 5 strings.`, product, description)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		fmt.Printf("[TRENDS] keyword generation failed for %s: %v\n", product, err)
		return fallbackKeywords(description)
	}

	var raw strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			raw.WriteString(string(text))
		}
	}

	var keywords []string
	if err := utils.DecodeLLMJSON(raw.String(), &keywords); err != nil || len(keywords) == 0 {
		return fallbackKeywords(description)
	}
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	return keywords
}

func fallbackKeywords(description string) []string {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return nil
	}
	return []string{strings.ToLower(desc)}
}

// fetchStories downloads and parses the trends feed. The feed is RSS;
// goquery's tolerant parser handles the namespaced traffic elements.
func (a *Analyzer) fetchStories(ctx context.Context) []Story {
	req, err := http.NewRequestWithContext(ctx, "GET", a.feedURL, nil)
	if err != nil {
		return nil
	}

	resp, err := a.http.Do(req)
	if err != nil {
		fmt.Printf("[TRENDS] feed fetch failed: %v\n", err)
		return nil
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		fmt.Printf("[TRENDS] feed parse failed: %v\n", err)
		return nil
	}

	var stories []Story
	doc.Find("item").Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find("title").First().Text())
		if title == "" {
			return
		}
		traffic := strings.TrimSpace(item.Find(`ht\:approx_traffic`).First().Text())
		stories = append(stories, Story{Title: title, Traffic: traffic})
	})
	return stories
}

// matchStories keeps feed stories whose title shares a token with any
// keyword.
func matchStories(stories []Story, keywords []string) []Story {
	var tokens []string
	for _, kw := range keywords {
		for _, tok := range strings.Fields(strings.ToLower(kw)) {
			if len(tok) >= 4 {
				tokens = append(tokens, tok)
			}
		}
	}
	if len(tokens) == 0 {
		return nil
	}

	var matched []Story
	for _, story := range stories {
		title := strings.ToLower(story.Title)
		for _, tok := range tokens {
			if strings.Contains(title, tok) {
				matched = append(matched, story)
				break
			}
		}
	}
	return matched
}

// FormatForLLM renders the enrichment as plain text for the composer prompt.
func FormatForLLM(results map[string]*ProductTrend) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Market signals from Google Trends:\n")
	for _, trend := range results {
		b.WriteString(fmt.Sprintf("- Product %s (%s): keywords %s\n",
			trend.Product, trend.Description, strings.Join(trend.Keywords, ", ")))
		for _, story := range trend.Stories {
			if story.Traffic != "" {
				b.WriteString(fmt.Sprintf("  trending: %s (%s searches)\n", story.Title, story.Traffic))
			} else {
				b.WriteString(fmt.Sprintf("  trending: %s\n", story.Title))
			}
		}
	}
	return b.String()
}
