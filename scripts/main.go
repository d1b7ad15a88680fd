package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/recruitlink/billing/scripts/internal"
)

// Command represents a script that can be run
type Command struct {
	Name        string
	Description string
	Run         func() error
}

var commands = []Command{
	{
		Name:        "generate-api-key",
		Description: "Generate an admin API key and print its config entry",
		Run:         internal.GenerateNewAPIKey,
	},
	{
		Name:        "sync-plans",
		Description: "Synchronize the configured plans with the payment processor",
		Run:         internal.SyncPlans,
	},
	{
		Name:        "export-ledger",
		Description: "Upload ledger entries created between -from and -to to the export bucket",
		Run:         internal.ExportLedger,
	},
	{
		Name:        "purge-events",
		Description: "Delete processed event ids older than the retention window",
		Run:         internal.PurgeProcessedEvents,
	},
	{
		Name:        "replay-event",
		Description: "Fetch a processor event by -event-id and apply it",
		Run:         internal.ReplayEvent,
	},
}

func main() {
	var (
		listCommands bool
		cmdName      string
		keyName      string
		from         string
		to           string
		eventID      string
	)

	flag.BoolVar(&listCommands, "list", false, "List all available commands")
	flag.StringVar(&cmdName, "cmd", "", "Command to run")
	flag.StringVar(&keyName, "key-name", "", "Name recorded for a generated API key")
	flag.StringVar(&from, "from", "", "Export window start date (YYYY-MM-DD)")
	flag.StringVar(&to, "to", "", "Export window end date, exclusive (YYYY-MM-DD)")
	flag.StringVar(&eventID, "event-id", "", "Processor event ID to replay")

	flag.Parse()

	if listCommands {
		fmt.Println("Available commands:")
		for _, cmd := range commands {
			fmt.Printf("  %-20s %s\n", cmd.Name, cmd.Description)
		}
		return
	}

	if cmdName == "" {
		log.Fatal("Please specify a command to run using -cmd flag. Use -list to see available commands.")
	}

	// Set command-specific environment variables
	if keyName != "" {
		os.Setenv("KEY_NAME", keyName)
	}
	if from != "" {
		os.Setenv("FROM", from)
	}
	if to != "" {
		os.Setenv("TO", to)
	}
	if eventID != "" {
		os.Setenv("EVENT_ID", eventID)
	}

	for _, cmd := range commands {
		if cmd.Name == cmdName {
			if err := cmd.Run(); err != nil {
				log.Fatalf("Error running command %s: %v", cmdName, err)
			}
			return
		}
	}

	log.Fatalf("Unknown command: %s. Use -list to see available commands.", cmdName)
}
