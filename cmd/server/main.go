// main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
	"github.com/ZanzyTHEbar/toolweave-genkit/internal/adapters"
	"github.com/ZanzyTHEbar/toolweave-genkit/internal/cache"
	"github.com/ZanzyTHEbar/toolweave-genkit/internal/discovery"
	"github.com/ZanzyTHEbar/toolweave-genkit/internal/eventbus"
	"github.com/ZanzyTHEbar/toolweave-genkit/internal/prompt"
	"github.com/ZanzyTHEbar/toolweave-genkit/internal/recovery"
	"github.com/ZanzyTHEbar/toolweave-genkit/internal/tools"
)

func main() {
	ctx := context.Background()

	// Ensure GEMINI_API_KEY environment variable is set
	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Fatal("GEMINI_API_KEY environment variable not set.")
	}

	// Configuration: defaults, optionally overlaid from a YAML file.
	config := toolweave.DefaultConfig()
	if path := os.Getenv("TOOLWEAVE_CONFIG"); path != "" {
		loaded, err := toolweave.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config from %s: %v", path, err)
		}
		config = loaded
	}

	// Initialize Genkit with the Google AI plugin
	g, err := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
		genkit.WithDefaultModel("googleai/gemini-1.5-flash"),
	)
	if err != nil {
		log.Fatal("Genkit initialization failed:", err)
	}

	// Assemble the engine components.
	toolNames, toolSet := tools.SetupTools(os.Getenv("TOOLWEAVE_WORKSPACE"))

	resultCache := cache.NewResultCache()
	defer resultCache.Stop()

	toolDiscovery := discovery.NewRegistry()

	renderer, err := prompt.NewTemplateRegistry()
	if err != nil {
		log.Fatal("Template registry initialization failed:", err)
	}

	recoveryEngine := recovery.NewEngine(toolDiscovery, config, recovery.WithRenderer(renderer))

	bus := eventbus.NewChannelEventBus()
	defer bus.Close()

	// Log every workflow event; a chat surface would subscribe here instead.
	if _, err := bus.SubscribeAll(func(ctx context.Context, event eventbus.Event) error {
		log.Printf("EVENT [%s] %v (source: %s)", event.Type(), event.Payload(), event.Source())
		return nil
	}); err != nil {
		log.Fatal("Event subscription failed:", err)
	}

	engine, err := toolweave.New(ctx, g,
		toolweave.WithConfig(config),
		toolweave.WithCache(resultCache),
		toolweave.WithRecovery(recoveryEngine),
		toolweave.WithDiscovery(toolDiscovery),
		toolweave.WithRenderer(renderer),
		toolweave.WithTools(toolSet),
		toolweave.WithEventBus(bus),
	)
	if err != nil {
		log.Fatal("Engine initialization failed:", err)
	}
	log.Printf("Registered tools: %v (order: %v)", engine.ListTools(), toolNames)

	host := adapters.NewGenkitModelHost(g, "")
	sink := &adapters.LogFeedbackSink{Prefix: "PROGRESS:"}

	// Main workflow flow: one query in, one assembled workflow result out.
	genkit.DefineFlow(g, "toolWeaveFlow",
		func(ctx context.Context, query string) (string, error) {
			messages := []toolweave.Message{
				{Role: toolweave.RoleUser, Content: query},
			}

			result := engine.ExecuteWorkflow(ctx, host, messages, sink, query)

			log.Printf("Workflow finished: %d round(s), %d tool call(s), stop reason %s",
				result.Metadata.TotalRounds,
				result.Metadata.TotalToolCalls,
				result.Metadata.StopReason)
			return result.Summary, nil
		},
	)

	// Async variant: kick off a workflow and poll its status.
	genkit.DefineFlow(g, "toolWeaveAsyncFlow",
		func(ctx context.Context, query string) (string, error) {
			messages := []toolweave.Message{
				{Role: toolweave.RoleUser, Content: query},
			}

			executionID, err := engine.ExecuteWorkflowAsync(ctx, host, messages, sink, query)
			if err != nil {
				return "", fmt.Errorf("failed to start workflow: %w", err)
			}

			for {
				time.Sleep(250 * time.Millisecond)
				status, err := engine.GetAsyncStatus(executionID)
				if err != nil {
					return "", err
				}
				if status.IsComplete {
					break
				}
			}

			result, err := engine.GetAsyncResult(executionID)
			if err != nil {
				return "", err
			}
			engine.CleanupCompletedWorkflows(time.Minute)
			return result.Summary, nil
		},
	)

	log.Println("Genkit initialized successfully. ToolWeave flows defined.")
	log.Println(`To run: genkit flow run toolWeaveFlow '"Your query here"'`)
	select {}
}
