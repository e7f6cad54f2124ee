package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/vthunder/mneme/internal/memory"
)

// RegisterBuiltins adds the small set of in-process tools every organism
// carries regardless of which external MCP servers are also configured:
// reading a sandboxed file, fetching an allowlisted URL, and writing a
// durable fact to memory. Grounded on spec.md §4.9's own examples of what
// the path sandbox and domain allowlist exist to gate ("file tools",
// "network tools") — without at least one tool of each kind, those
// allowlists are configured but never exercised.
func RegisterBuiltins(reg *Registry, store *memory.Store) {
	reg.Register(Tool{
		Name:        "read_file",
		Description: "Read a text file from the sandboxed path allowlist.",
		Schema: Schema{
			Properties: map[string]Property{
				"path": {Type: TypeString, Description: "absolute or relative path to read"},
			},
			Required: []string{"path"},
		},
		Capability: Active,
		PathArg:    "path",
		Handler:    handleReadFile,
	})

	reg.Register(Tool{
		Name:        "fetch_url",
		Description: "Fetch a URL whose host is on the domain allowlist.",
		Schema: Schema{
			Properties: map[string]Property{
				"url": {Type: TypeString, Description: "http(s) URL to fetch"},
			},
			Required: []string{"url"},
		},
		Capability: Active,
		DomainArg:  "url",
		Handler:    handleFetchURL,
	})

	reg.Register(Tool{
		Name:        "remember_fact",
		Description: "Store a durable subject-predicate-object fact in memory.",
		Schema: Schema{
			Properties: map[string]Property{
				"subject":   {Type: TypeString, Description: "fact subject"},
				"predicate": {Type: TypeString, Description: "fact predicate"},
				"object":    {Type: TypeString, Description: "fact object"},
			},
			Required: []string{"subject", "predicate", "object"},
		},
		Capability: Passive,
		Handler:    handleRememberFact(store),
	})
}

func handleReadFile(ctx context.Context, args map[string]any) Result {
	path, _ := args["path"].(string)
	data, err := os.ReadFile(path)
	if err != nil {
		return errResult("read %s: %v", path, err)
	}
	return Result{Content: string(data)}
}

func handleFetchURL(ctx context.Context, args map[string]any) Result {
	url, _ := args["url"].(string)
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errResult("build request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return errResult("fetch %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return errResult("read response: %v", err)
	}
	if resp.StatusCode >= 400 {
		return errResult("fetch %s: status %d", url, resp.StatusCode)
	}
	return Result{Content: string(body)}
}

func handleRememberFact(store *memory.Store) Handler {
	return func(ctx context.Context, args map[string]any) Result {
		subject, _ := args["subject"].(string)
		predicate, _ := args["predicate"].(string)
		object, _ := args["object"].(string)
		fact := memory.SemanticFact{
			Subject:    subject,
			Predicate:  predicate,
			Object:     object,
			Confidence: 0.8,
		}
		if err := store.StoreFact(fact); err != nil {
			return errResult("store fact: %v", err)
		}
		return Result{Content: fmt.Sprintf("remembered: %s %s %s", subject, predicate, object)}
	}
}
