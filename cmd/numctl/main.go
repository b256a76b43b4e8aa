// Package main provides a CLI for the numbering backend.
// Usage: numctl next invoice
//        numctl validate invoice 1042
//        numctl format consignment 5001
//        numctl save consignment 9000 LR
//        numctl record invoice 1042
//        numctl list
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	corenumbering "logibill/internal/core/numbering"
	"logibill/internal/infrastructure/config"
	"logibill/internal/infrastructure/numbering/client"
	"logibill/pkg/logger"
	"logibill/pkg/numbering"
)

type app struct {
	backend   *client.Client
	allocator *numbering.Allocator
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		printUsage()
		return
	}

	a, err := newApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()

	switch command {
	case "next":
		err = a.next(ctx)
	case "validate":
		err = a.validate(ctx)
	case "format":
		err = a.format(ctx)
	case "save":
		err = a.save(ctx)
	case "record":
		err = a.record(ctx)
	case "list":
		err = a.list(ctx)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() (*app, error) {
	cfg, err := config.LoadClient(os.Getenv("LOGIBILL_CONFIG"))
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Development(), OutputPaths: []string{"stderr"}})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var tokens client.TokenSource
	switch {
	case cfg.Backend.Token != "":
		tokens = client.StaticToken(cfg.Backend.Token)
	case cfg.Backend.ClientID != "":
		tokens = &client.ClientCredentials{
			BaseURL:      cfg.Backend.URL,
			ClientID:     cfg.Backend.ClientID,
			ClientSecret: cfg.Backend.ClientSecret,
		}
	default:
		return nil, fmt.Errorf("set LOGIBILL_BACKEND_TOKEN or LOGIBILL_BACKEND_CLIENT_ID")
	}

	backend, err := client.New(client.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
		Tokens:  tokens,
	})
	if err != nil {
		return nil, err
	}

	policy := numbering.FailOpen
	if cfg.Numbering.FailClosed {
		policy = numbering.FailClosed
	}

	return &app{
		backend:   backend,
		allocator: numbering.New(backend, numbering.WithLogger(log), numbering.WithDuplicatePolicy(policy)),
	}, nil
}

func (a *app) next(ctx context.Context) error {
	docType, err := typeArg(2)
	if err != nil {
		return err
	}
	n, err := a.allocator.GetNextNumber(ctx, docType)
	if err != nil {
		return err
	}
	fmt.Println(a.allocator.FormatNumber(docType, n))
	return nil
}

func (a *app) validate(ctx context.Context) error {
	docType, number, err := typeAndNumber()
	if err != nil {
		return err
	}
	res := a.allocator.ValidateManualNumber(ctx, docType, number)
	if !res.Valid {
		return errors.New(res.Message)
	}
	fmt.Printf("%s is available\n", a.allocator.FormatNumber(docType, number))
	return nil
}

func (a *app) format(ctx context.Context) error {
	docType, number, err := typeAndNumber()
	if err != nil {
		return err
	}
	a.allocator.Initialize(ctx)
	fmt.Println(a.allocator.FormatNumber(docType, number))
	return nil
}

func (a *app) save(ctx context.Context) error {
	docType, start, err := typeAndNumber()
	if err != nil {
		return err
	}
	prefix := ""
	if len(os.Args) > 4 {
		prefix = os.Args[4]
	}

	cfg, err := a.allocator.SaveConfig(ctx, docType, start, prefix)
	if err != nil {
		return err
	}
	fmt.Printf("saved %s: starting %d, next %s\n", cfg.Type, cfg.StartingNumber, cfg.Format(cfg.CurrentNumber))
	return nil
}

func (a *app) record(ctx context.Context) error {
	docType, number, err := typeAndNumber()
	if err != nil {
		return err
	}
	if err := a.backend.RecordDocument(ctx, docType, number); err != nil {
		return err
	}
	fmt.Printf("recorded %s %d\n", docType, number)
	return nil
}

func (a *app) list(ctx context.Context) error {
	if err := a.allocator.LoadConfigs(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tPREFIX\tSTARTING\tNEXT\tUPDATED")
	for _, c := range a.allocator.GetAllConfigs() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", c.Type, c.Prefix, c.StartingNumber, c.Format(c.CurrentNumber), c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func typeArg(pos int) (corenumbering.DocumentType, error) {
	if len(os.Args) <= pos {
		return "", fmt.Errorf("document type is required (invoice or consignment)")
	}
	return corenumbering.ParseDocumentType(os.Args[pos])
}

func typeAndNumber() (corenumbering.DocumentType, int64, error) {
	docType, err := typeArg(2)
	if err != nil {
		return "", 0, err
	}
	if len(os.Args) < 4 {
		return "", 0, fmt.Errorf("number is required")
	}
	n, err := strconv.ParseInt(os.Args[3], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid number %q", os.Args[3])
	}
	return docType, n, nil
}

func printUsage() {
	fmt.Println(`logibill numbering CLI

Usage:
  numctl <command> [arguments]

Commands:
  next TYPE                 Allocate the next number of TYPE
  validate TYPE NUMBER      Check a manually entered number
  format TYPE NUMBER        Print NUMBER with the TYPE prefix
  save TYPE START [PREFIX]  Create or update the TYPE config
  record TYPE NUMBER        Register NUMBER as used by a saved document
  list                      Show every config
  help                      Show this help

TYPE is invoice or consignment.

Environment Variables:
  LOGIBILL_BACKEND_URL            Numbering API base URL (default: http://localhost:8080)
  LOGIBILL_BACKEND_TOKEN          Pre-issued bearer token
  LOGIBILL_BACKEND_CLIENT_ID      Client id for POST /api/v1/auth/token
  LOGIBILL_BACKEND_CLIENT_SECRET  Client secret
  LOGIBILL_NUMBERING_FAIL_CLOSED  Reject manual numbers when the duplicate check fails`)
}
